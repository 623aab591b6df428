package ocppserver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChargerConnection is the registry record for one connected charge point.
// The zero connector id holds the overall charger status; connectors 1..n
// are tracked in ConnectorStatus.
type ChargerConnection struct {
	ChargerID           string              `json:"chargerId"`
	Session             *ChargePointSession `json:"-"`
	ConnectedAt         time.Time           `json:"connectedAt"`
	Vendor              string              `json:"vendor,omitempty"`
	Model               string              `json:"model,omitempty"`
	SerialNumber        string              `json:"serialNumber,omitempty"`
	FirmwareVersion     string              `json:"firmwareVersion,omitempty"`
	Status              string              `json:"status"`
	ConnectorStatus     map[int]string      `json:"connectorStatus"`
	LastHeartbeat       time.Time           `json:"lastHeartbeat"`
	ActiveTransactionID *int                `json:"activeTransactionId,omitempty"`
}

// CentralSystem accepts OCPP 1.6-J WebSocket connections from charge points
// and tracks their live state. It owns the connection registry and the
// transaction ledger; all operator-facing code goes through its exported
// methods rather than reaching into either directly.
type CentralSystem struct {
	config   *Config
	gateway  Gateway
	ledger   *TransactionLedger
	upgrader websocket.Upgrader

	mutex       sync.RWMutex
	connections map[string]*ChargerConnection
}

// NewCentralSystem creates a central system with the given configuration and
// gateway. The gateway may be nil, in which case events are dropped.
func NewCentralSystem(config *Config, gateway Gateway) *CentralSystem {
	cs := &CentralSystem{
		config:  config,
		gateway: gateway,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Charge points connect from anywhere
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"ocpp1.6", "ocpp1.6j"},
		},
		connections: make(map[string]*ChargerConnection),
	}
	cs.ledger = newTransactionLedger(cs)
	return cs
}

// Ledger returns the transaction ledger.
func (cs *CentralSystem) Ledger() *TransactionLedger {
	return cs.ledger
}

// Config returns the configuration the central system was built with.
func (cs *CentralSystem) Config() *Config {
	return cs.config
}

// ServeHTTP upgrades an incoming charge point connection. The charger id is
// the last segment of the request path, e.g. /ocpp/1.6/CP-1.
func (cs *CentralSystem) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chargerID := chargerIDFromPath(r.URL.Path)
	if chargerID == "" {
		http.Error(w, "missing charge point id", http.StatusBadRequest)
		return
	}

	conn, err := cs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection for %s: %v", chargerID, err)
		return
	}

	session := newChargePointSession(cs, chargerID, conn)
	cs.register(chargerID, session)
	log.Printf("New connection from %s (subprotocol %q)", chargerID, conn.Subprotocol())

	go session.readLoop()
}

// chargerIDFromPath extracts the charge point id from the request path.
func chargerIDFromPath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// register inserts or replaces the registry entry for chargerID. If a
// previous session is still open it is forcibly closed; its read loop then
// exits and its deferred unregister becomes a no-op because the entry no
// longer points at it.
func (cs *CentralSystem) register(chargerID string, session *ChargePointSession) {
	entry := &ChargerConnection{
		ChargerID:       chargerID,
		Session:         session,
		ConnectedAt:     time.Now().UTC(),
		Status:          "Unknown",
		ConnectorStatus: make(map[int]string),
		LastHeartbeat:   time.Now().UTC(),
	}

	cs.mutex.Lock()
	prev := cs.connections[chargerID]
	cs.connections[chargerID] = entry
	cs.mutex.Unlock()

	if prev != nil && prev.Session != nil && prev.Session != session {
		log.Printf("Charge point %s re-registered, closing previous session", chargerID)
		prev.Session.close()
	}

	cs.publish(EventChargerConnected, map[string]interface{}{
		"chargerId":   chargerID,
		"connectedAt": entry.ConnectedAt.Format(time.RFC3339),
	})
}

// unregister removes the registry entry for chargerID, but only if it still
// belongs to the given session. This keeps the disconnect of an orphaned
// session from evicting its replacement, and makes the cleanup idempotent.
func (cs *CentralSystem) unregister(chargerID string, session *ChargePointSession) {
	cs.mutex.Lock()
	entry, exists := cs.connections[chargerID]
	if exists && entry.Session == session {
		delete(cs.connections, chargerID)
	} else {
		exists = false
	}
	cs.mutex.Unlock()

	if !exists {
		return
	}

	log.Printf("Connection closed for %s", chargerID)
	cs.publish(EventChargerDisconnected, map[string]interface{}{
		"chargerId":      chargerID,
		"disconnectedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// updateConnection applies fn to the live entry for chargerID under the
// registry lock. It reports whether the charger was present. fn must not
// block or perform I/O.
func (cs *CentralSystem) updateConnection(chargerID string, fn func(*ChargerConnection)) bool {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	entry, exists := cs.connections[chargerID]
	if !exists {
		return false
	}
	fn(entry)
	return true
}

// session returns the live session for chargerID, or nil if it is offline.
func (cs *CentralSystem) session(chargerID string) *ChargePointSession {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	entry, exists := cs.connections[chargerID]
	if !exists {
		return nil
	}
	return entry.Session
}

// Connection returns a point-in-time copy of the registry entry for
// chargerID. The second return value is false if the charger is offline.
func (cs *CentralSystem) Connection(chargerID string) (ChargerConnection, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	entry, exists := cs.connections[chargerID]
	if !exists {
		return ChargerConnection{}, false
	}
	return copyConnection(entry), true
}

// Connections returns a point-in-time snapshot of all registry entries.
func (cs *CentralSystem) Connections() []ChargerConnection {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	snapshot := make([]ChargerConnection, 0, len(cs.connections))
	for _, entry := range cs.connections {
		snapshot = append(snapshot, copyConnection(entry))
	}
	return snapshot
}

// OnlineCount returns the number of currently connected charge points.
func (cs *CentralSystem) OnlineCount() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.connections)
}

// ActiveTransactions returns all transactions currently in progress.
func (cs *CentralSystem) ActiveTransactions() []Transaction {
	return cs.ledger.ListActive()
}

func copyConnection(entry *ChargerConnection) ChargerConnection {
	copied := *entry
	copied.ConnectorStatus = make(map[int]string, len(entry.ConnectorStatus))
	for id, status := range entry.ConnectorStatus {
		copied.ConnectorStatus[id] = status
	}
	if entry.ActiveTransactionID != nil {
		txID := *entry.ActiveTransactionID
		copied.ActiveTransactionID = &txID
	}
	return copied
}

// CloseAll force-closes every connected charge point session. Used during
// shutdown; each session's read loop performs its own unregister.
func (cs *CentralSystem) CloseAll() {
	cs.mutex.RLock()
	sessions := make([]*ChargePointSession, 0, len(cs.connections))
	for _, entry := range cs.connections {
		if entry.Session != nil {
			sessions = append(sessions, entry.Session)
		}
	}
	cs.mutex.RUnlock()

	for _, session := range sessions {
		session.close()
	}
}

// StartHeartbeatWatch periodically logs charge points whose last heartbeat
// is older than maxAge. It returns when ctx is cancelled.
func (cs *CentralSystem) StartHeartbeatWatch(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				for _, conn := range cs.Connections() {
					silence := now.Sub(conn.LastHeartbeat)
					if silence > maxAge {
						log.Printf("WARNING: Charge point %s has not sent a heartbeat for %v",
							conn.ChargerID, silence.Round(time.Second))
					}
				}
			}
		}
	}()
}
