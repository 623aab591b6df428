package ocppserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// callOutcome is what a pending outbound Call resolves to: either a
// CallResult payload or a CallError triple from the charge point.
type callOutcome struct {
	payload   json.RawMessage
	errorCode string
	errorDesc string
}

// pendingCall is the session's single in-flight outbound request.
type pendingCall struct {
	uniqueID string
	result   chan callOutcome
}

// ChargePointSession owns one WebSocket connection to a charge point. It
// runs the inbound read loop, dispatches Calls to the central system's
// handlers, and carries at most one outbound Call at a time — OCPP allows
// only one in-flight request per direction per connection.
type ChargePointSession struct {
	cs        *CentralSystem
	chargerID string
	conn      *websocket.Conn

	writeMutex sync.Mutex // serializes replies, outbound Calls and pings

	pendingMutex sync.Mutex
	pending      *pendingCall

	closeOnce sync.Once
	closed    chan struct{}
}

func newChargePointSession(cs *CentralSystem, chargerID string, conn *websocket.Conn) *ChargePointSession {
	return &ChargePointSession{
		cs:        cs,
		chargerID: chargerID,
		conn:      conn,
		closed:    make(chan struct{}),
	}
}

// ChargerID returns the identity of the connected charge point.
func (s *ChargePointSession) ChargerID() string {
	return s.chargerID
}

// close shuts the socket down. Safe to call from any goroutine and more
// than once; the read loop unblocks and performs the unregister.
func (s *ChargePointSession) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// readLoop processes inbound frames until the socket closes or breaks.
// Unregistration runs exactly once on the way out.
func (s *ChargePointSession) readLoop() {
	defer func() {
		s.close()
		s.cs.unregister(s.chargerID, s)
	}()

	keepAlive := s.cs.config.PingInterval + s.cs.config.PongTimeout
	s.conn.SetReadDeadline(time.Now().Add(keepAlive))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(keepAlive))
	})
	go s.pingLoop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading from %s: %v", s.chargerID, err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(keepAlive))
		s.handleFrame(data)
	}
}

// pingLoop sends keep-alive pings until the session closes.
func (s *ChargePointSession) pingLoop() {
	ticker := time.NewTicker(s.cs.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.writeMutex.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMutex.Unlock()
			if err != nil {
				s.close()
				return
			}
		}
	}
}

// handleFrame decodes one inbound message and routes it by type. A frame we
// cannot even extract a unique id from is logged and dropped; a malformed
// Call is answered with a CallError. The connection is never dropped for a
// protocol error alone.
func (s *ChargePointSession) handleFrame(data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		log.Printf("Dropping malformed frame from %s: %v", s.chargerID, err)
		return
	}

	switch frame.MessageType {
	case CallType:
		payload, callErr := s.cs.dispatch(s.chargerID, frame.Action, frame.Payload)
		if callErr != nil {
			s.writeJSON(newCallError(frame.UniqueID, callErr.Code, callErr.Description))
			return
		}
		if err := s.writeJSON(newCallResult(frame.UniqueID, payload)); err != nil {
			log.Printf("Error sending %s response to %s: %v", frame.Action, s.chargerID, err)
		}
	case CallResultType:
		s.resolvePending(frame.UniqueID, callOutcome{payload: frame.Payload})
	case CallErrorType:
		log.Printf("CallError from %s: code=%s, description=%s",
			s.chargerID, frame.ErrorCode, frame.ErrorDesc)
		s.resolvePending(frame.UniqueID, callOutcome{
			errorCode: frame.ErrorCode,
			errorDesc: frame.ErrorDesc,
		})
	}
}

// Call sends an outbound Call to the charge point and waits for the
// correlated CallResult. Only one Call may be in flight at a time; the slot
// is released on result, timeout, or connection close, so a timed-out
// command never wedges the connection.
func (s *ChargePointSession) Call(action string, payload interface{}) (json.RawMessage, error) {
	s.pendingMutex.Lock()
	if s.pending != nil {
		s.pendingMutex.Unlock()
		return nil, fmt.Errorf("a %s call is already pending on %s", action, s.chargerID)
	}
	call := &pendingCall{
		uniqueID: uuid.New().String(),
		result:   make(chan callOutcome, 1),
	}
	s.pending = call
	s.pendingMutex.Unlock()

	if err := s.writeJSON(newCall(call.uniqueID, action, payload)); err != nil {
		s.clearPending(call)
		return nil, fmt.Errorf("failed to send %s to %s: %w", action, s.chargerID, err)
	}

	select {
	case outcome := <-call.result:
		if outcome.errorCode != "" {
			return nil, fmt.Errorf("charge point returned %s: %s", outcome.errorCode, outcome.errorDesc)
		}
		return outcome.payload, nil
	case <-time.After(s.cs.config.CallTimeout):
		s.clearPending(call)
		return nil, fmt.Errorf("%s to %s timed out after %v", action, s.chargerID, s.cs.config.CallTimeout)
	case <-s.closed:
		s.clearPending(call)
		return nil, errors.New("connection closed while awaiting response")
	}
}

// resolvePending delivers an outcome to the in-flight call, if the unique id
// matches. Late responses to already timed-out calls are logged and dropped.
func (s *ChargePointSession) resolvePending(uniqueID string, outcome callOutcome) {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()

	if s.pending == nil || s.pending.uniqueID != uniqueID {
		log.Printf("Response from %s for unknown message id %s", s.chargerID, uniqueID)
		return
	}
	s.pending.result <- outcome
	s.pending = nil
}

func (s *ChargePointSession) clearPending(call *pendingCall) {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()

	if s.pending == call {
		s.pending = nil
	}
}

func (s *ChargePointSession) writeJSON(message []interface{}) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(message)
}
