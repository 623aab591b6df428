package ocppserver

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testConfig() *Config {
	return &Config{
		Host:              "localhost",
		WebSocketPort:     9000,
		APIPort:           9001,
		SystemName:        "test-central",
		HeartbeatInterval: 300,
		CallTimeout:       250 * time.Millisecond,
		PingInterval:      10 * time.Second,
		PongTimeout:       5 * time.Second,
	}
}

// recordingGateway captures published events for assertions.
type recordingGateway struct {
	mutex  sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event string
	data  map[string]interface{}
}

func (g *recordingGateway) Publish(event string, data map[string]interface{}) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.events = append(g.events, recordedEvent{event: event, data: data})
}

func (g *recordingGateway) count(event string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	n := 0
	for _, e := range g.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// dialChargePoint connects a fake charge point to the test server.
func dialChargePoint(t *testing.T, serverURL, chargerID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ocpp/1.6/" + chargerID
	dialer := websocket.Dialer{Subprotocols: []string{"ocpp1.6"}}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", wsURL, err)
	}
	return conn
}

// roundTrip sends a Call and reads back one frame.
func roundTrip(t *testing.T, conn *websocket.Conn, uniqueID, action string, payload interface{}) *Frame {
	t.Helper()
	if err := conn.WriteJSON(newCall(uniqueID, action, payload)); err != nil {
		t.Fatalf("failed to send %s: %v", action, err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read %s response: %v", action, err)
	}
	frame, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("failed to decode %s response: %v", action, err)
	}
	return frame
}

func TestBootNotificationPopulatesRegistry(t *testing.T) {
	gw := &recordingGateway{}
	cs := NewCentralSystem(testConfig(), gw)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	defer conn.Close()

	frame := roundTrip(t, conn, "boot-1", ActionBootNotification, BootNotificationRequest{
		ChargePointVendor: "Acme",
		ChargePointModel:  "X1",
	})
	if frame.MessageType != CallResultType || frame.UniqueID != "boot-1" {
		t.Fatalf("unexpected response frame: %+v", frame)
	}

	var conf BootNotificationConfirmation
	if err := json.Unmarshal(frame.Payload, &conf); err != nil {
		t.Fatalf("failed to decode confirmation: %v", err)
	}
	if conf.Status != StatusAccepted {
		t.Fatalf("expected Accepted, got %s", conf.Status)
	}
	if conf.Interval != 300 {
		t.Fatalf("expected interval 300, got %d", conf.Interval)
	}
	if conf.CurrentTime == "" {
		t.Fatalf("expected non-empty currentTime")
	}

	connection, online := cs.Connection("CP-1")
	if !online {
		t.Fatalf("expected CP-1 to be registered")
	}
	if connection.Vendor != "Acme" || connection.Model != "X1" {
		t.Fatalf("unexpected connection fields: %+v", connection)
	}
	if gw.count(EventChargerConnected) != 1 {
		t.Fatalf("expected one charger_connected event, got %d", gw.count(EventChargerConnected))
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	gw := &recordingGateway{}
	cs := NewCentralSystem(testConfig(), gw)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	defer conn.Close()

	// Start a transaction.
	frame := roundTrip(t, conn, "start-1", ActionStartTransaction, StartTransactionRequest{
		ConnectorId: 1,
		IdTag:       "TAG-1",
		MeterStart:  0,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	var startConf StartTransactionConfirmation
	if err := json.Unmarshal(frame.Payload, &startConf); err != nil {
		t.Fatalf("failed to decode confirmation: %v", err)
	}
	if startConf.TransactionId <= 0 {
		t.Fatalf("expected positive transaction id, got %d", startConf.TransactionId)
	}
	if startConf.IdTagInfo.Status != StatusAccepted {
		t.Fatalf("expected Accepted, got %s", startConf.IdTagInfo.Status)
	}

	active, ok := cs.Ledger().ActiveFor("CP-1")
	if !ok || active.TransactionID != startConf.TransactionId || active.Status != TransactionActive {
		t.Fatalf("unexpected active transaction: %+v, ok=%v", active, ok)
	}

	waitFor(t, "active transaction id on connection", func() bool {
		connection, online := cs.Connection("CP-1")
		return online && connection.ActiveTransactionID != nil && *connection.ActiveTransactionID == startConf.TransactionId
	})

	// Stop it.
	frame = roundTrip(t, conn, "stop-1", ActionStopTransaction, StopTransactionRequest{
		TransactionId: startConf.TransactionId,
		MeterStop:     15000,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Reason:        "Local",
	})
	var stopConf StopTransactionConfirmation
	if err := json.Unmarshal(frame.Payload, &stopConf); err != nil {
		t.Fatalf("failed to decode confirmation: %v", err)
	}
	if stopConf.IdTagInfo.Status != StatusAccepted {
		t.Fatalf("expected Accepted, got %s", stopConf.IdTagInfo.Status)
	}

	completed, ok := cs.Ledger().Get(startConf.TransactionId)
	if !ok || completed.Status != TransactionCompleted {
		t.Fatalf("expected completed transaction, got %+v", completed)
	}
	if completed.EnergyKWh != 15.0 {
		t.Fatalf("expected 15.0 kWh, got %v", completed.EnergyKWh)
	}
	if _, ok := cs.Ledger().ActiveFor("CP-1"); ok {
		t.Fatalf("expected no active transaction after stop")
	}
	if gw.count(EventTransactionStarted) != 1 || gw.count(EventTransactionStopped) != 1 {
		t.Fatalf("unexpected transaction events: %+v", gw.events)
	}
}

func TestStatusNotificationUpdatesConnectors(t *testing.T) {
	cs := NewCentralSystem(testConfig(), nil)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	defer conn.Close()

	roundTrip(t, conn, "sn-1", ActionStatusNotification, StatusNotificationRequest{
		ConnectorId: 1, ErrorCode: "NoError", Status: "Charging",
	})
	roundTrip(t, conn, "sn-2", ActionStatusNotification, StatusNotificationRequest{
		ConnectorId: 0, ErrorCode: "NoError", Status: "Available",
	})

	connection, online := cs.Connection("CP-1")
	if !online {
		t.Fatalf("expected CP-1 to be registered")
	}
	if connection.ConnectorStatus[1] != "Charging" {
		t.Fatalf("expected connector 1 Charging, got %q", connection.ConnectorStatus[1])
	}
	if connection.Status != "Available" {
		t.Fatalf("expected overall status Available, got %q", connection.Status)
	}
}

func TestDisconnectUnregistersExactlyOnce(t *testing.T) {
	gw := &recordingGateway{}
	cs := NewCentralSystem(testConfig(), gw)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	roundTrip(t, conn, "hb-1", ActionHeartbeat, nil)

	conn.Close()
	waitFor(t, "CP-1 to be unregistered", func() bool {
		_, online := cs.Connection("CP-1")
		return !online
	})

	// Give any duplicate cleanup a chance to fire before counting.
	time.Sleep(50 * time.Millisecond)
	if got := gw.count(EventChargerDisconnected); got != 1 {
		t.Fatalf("expected exactly one charger_disconnected event, got %d", got)
	}
}

func TestReRegistrationClosesPreviousSession(t *testing.T) {
	gw := &recordingGateway{}
	cs := NewCentralSystem(testConfig(), gw)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	first := dialChargePoint(t, srv.URL, "CP-1")
	defer first.Close()
	roundTrip(t, first, "hb-1", ActionHeartbeat, nil)

	second := dialChargePoint(t, srv.URL, "CP-1")
	defer second.Close()
	roundTrip(t, second, "hb-2", ActionHeartbeat, nil)

	// The first socket must be force-closed by the replacement.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected the first connection to be closed")
	}

	if got := cs.OnlineCount(); got != 1 {
		t.Fatalf("expected one online charger, got %d", got)
	}

	// The orphaned session's cleanup must not evict the new entry or emit
	// a disconnect for it.
	time.Sleep(50 * time.Millisecond)
	if _, online := cs.Connection("CP-1"); !online {
		t.Fatalf("expected CP-1 to remain registered after re-registration")
	}
	if got := gw.count(EventChargerDisconnected); got != 0 {
		t.Fatalf("expected no charger_disconnected events, got %d", got)
	}
}

func TestUnknownActionAnswersCallErrorAndKeepsConnection(t *testing.T) {
	cs := NewCentralSystem(testConfig(), nil)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	defer conn.Close()

	frame := roundTrip(t, conn, "bad-1", "GetCompositeSchedule", map[string]interface{}{})
	if frame.MessageType != CallErrorType || frame.ErrorCode != ErrNotImplemented {
		t.Fatalf("expected NotImplemented CallError, got %+v", frame)
	}

	// Connection must survive a protocol error.
	frame = roundTrip(t, conn, "hb-1", ActionHeartbeat, nil)
	if frame.MessageType != CallResultType {
		t.Fatalf("expected heartbeat to still work, got %+v", frame)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	cs := NewCentralSystem(testConfig(), nil)
	srv := httptest.NewServer(cs)
	defer srv.Close()

	conn := dialChargePoint(t, srv.URL, "CP-1")
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("failed to write garbage: %v", err)
	}

	frame := roundTrip(t, conn, "hb-1", ActionHeartbeat, nil)
	if frame.MessageType != CallResultType {
		t.Fatalf("expected heartbeat response after garbage frame, got %+v", frame)
	}
}

func TestConnectionSnapshotIsACopy(t *testing.T) {
	cs := NewCentralSystem(testConfig(), nil)
	cs.register("CP-1", nil)
	cs.updateConnection("CP-1", func(c *ChargerConnection) {
		c.ConnectorStatus[1] = "Available"
	})

	snapshot, online := cs.Connection("CP-1")
	if !online {
		t.Fatalf("expected CP-1 in registry")
	}
	snapshot.ConnectorStatus[1] = "Faulted"

	fresh, _ := cs.Connection("CP-1")
	if fresh.ConnectorStatus[1] != "Available" {
		t.Fatalf("snapshot mutation leaked into registry: %q", fresh.ConnectorStatus[1])
	}
}

func TestGatewayPanicIsIsolated(t *testing.T) {
	panicking := GatewayFunc(func(event string, data map[string]interface{}) {
		panic("collaborator exploded")
	})
	cs := NewCentralSystem(testConfig(), panicking)

	// Must not panic the caller.
	cs.register("CP-1", nil)
	cs.unregister("CP-1", nil)
}

func TestMultiGatewayFansOut(t *testing.T) {
	first := &recordingGateway{}
	second := &recordingGateway{}
	multi := MultiGateway{first, second}

	multi.Publish(EventChargerConnected, map[string]interface{}{"chargerId": "CP-1"})

	if first.count(EventChargerConnected) != 1 || second.count(EventChargerConnected) != 1 {
		t.Fatalf("expected both gateways to receive the event")
	}
}

func TestChargerIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/ocpp/1.6/CP-1":  "CP-1",
		"/ocpp/1.6/CP-1/": "CP-1",
		"/CP-2":           "CP-2",
	}
	for path, want := range cases {
		if got := chargerIDFromPath(path); got != want {
			t.Fatalf("chargerIDFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
