package ocppserver

import "log"

// Gateway event kinds published by the central system. Each carries a flat
// map of plain key/value pairs so collaborators can persist or broadcast
// without depending on the protocol types.
const (
	EventChargerConnected    = "charger_connected"
	EventChargerDisconnected = "charger_disconnected"
	EventTransactionStarted  = "transaction_started"
	EventTransactionStopped  = "transaction_stopped"
)

// Gateway receives lifecycle events from the central system. Implementations
// typically persist rows or push live updates; they must tolerate being
// called from many session goroutines at once.
type Gateway interface {
	Publish(event string, data map[string]interface{})
}

// GatewayFunc adapts a plain function to the Gateway interface.
type GatewayFunc func(event string, data map[string]interface{})

// Publish implements Gateway.
func (f GatewayFunc) Publish(event string, data map[string]interface{}) {
	f(event, data)
}

// MultiGateway fans one event out to several collaborators in order.
type MultiGateway []Gateway

// Publish implements Gateway.
func (m MultiGateway) Publish(event string, data map[string]interface{}) {
	for _, g := range m {
		g.Publish(event, data)
	}
}

// publish delivers an event to the configured gateway. It is always called
// outside the registry and ledger locks, and a panicking collaborator must
// not take the session goroutine down with it.
func (cs *CentralSystem) publish(event string, data map[string]interface{}) {
	if cs.gateway == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Gateway panicked on %s event: %v", event, r)
		}
	}()
	cs.gateway.Publish(event, data)
}
