package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	ocppserver "github.com/joshalim/Smartcharge2026-sub000/ocpp"
)

const metricPrefix = "smartcharge_"

var (
	registerOnce sync.Once

	chargersConnected prometheus.Gauge
	gatewayEvents     *prometheus.CounterVec
	remoteCommands    *prometheus.CounterVec
)

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		chargersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "chargers_connected",
			Help: "Number of charge points currently connected.",
		})
		gatewayEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "gateway_events_total",
			Help: "Gateway events published by the central system.",
		}, []string{"event"})
		remoteCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "remote_commands_total",
			Help: "Operator-initiated remote commands by action and outcome.",
		}, []string{"command", "status"})

		prometheus.MustRegister(chargersConnected, gatewayEvents, remoteCommands)
	})
}

// EventObserver tracks gateway events. It satisfies the central system's
// Gateway interface so it can subscribe alongside the database recorder.
type EventObserver struct{}

// Publish updates the connection gauge and event counters.
func (EventObserver) Publish(event string, data map[string]interface{}) {
	if gatewayEvents == nil {
		return
	}
	gatewayEvents.WithLabelValues(event).Inc()

	switch event {
	case ocppserver.EventChargerConnected:
		chargersConnected.Inc()
	case ocppserver.EventChargerDisconnected:
		chargersConnected.Dec()
	}
}

// ObserveCommand counts one remote command outcome.
func ObserveCommand(command, status string) {
	if remoteCommands == nil {
		return
	}
	remoteCommands.WithLabelValues(command, status).Inc()
}
