package ocppserver

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OCPP-J message type identifiers.
const (
	CallType       = 2
	CallResultType = 3
	CallErrorType  = 4
)

// CallError codes defined by the OCPP 1.6 JSON specification.
const (
	ErrNotImplemented     = "NotImplemented"
	ErrProtocolError      = "ProtocolError"
	ErrFormationViolation = "FormationViolation"
	ErrInternalError      = "InternalError"
)

// Frame is a decoded OCPP-J message. Which fields are populated depends on
// MessageType: a Call carries Action and Payload, a CallResult carries only
// Payload, a CallError carries the error triple.
type Frame struct {
	MessageType  int
	UniqueID     string
	Action       string
	Payload      json.RawMessage
	ErrorCode    string
	ErrorDesc    string
	ErrorDetails json.RawMessage
}

// decodeFrame parses a raw WebSocket message into a Frame. The wire format is
// a JSON array: [2,"id","Action",{...}] / [3,"id",{...}] / [4,"id","code","desc",{...}].
func decodeFrame(data []byte) (*Frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("message is not a JSON array: %w", err)
	}
	if len(parts) < 3 {
		return nil, errors.New("message has fewer than 3 elements")
	}

	frame := &Frame{}
	if err := json.Unmarshal(parts[0], &frame.MessageType); err != nil {
		return nil, fmt.Errorf("invalid message type id: %w", err)
	}
	if err := json.Unmarshal(parts[1], &frame.UniqueID); err != nil {
		return nil, fmt.Errorf("invalid unique id: %w", err)
	}

	switch frame.MessageType {
	case CallType:
		if len(parts) < 4 {
			return nil, errors.New("Call frame is missing its payload")
		}
		if err := json.Unmarshal(parts[2], &frame.Action); err != nil {
			return nil, fmt.Errorf("invalid action: %w", err)
		}
		frame.Payload = parts[3]
	case CallResultType:
		frame.Payload = parts[2]
	case CallErrorType:
		if len(parts) < 5 {
			return nil, errors.New("CallError frame has fewer than 5 elements")
		}
		if err := json.Unmarshal(parts[2], &frame.ErrorCode); err != nil {
			return nil, fmt.Errorf("invalid error code: %w", err)
		}
		if err := json.Unmarshal(parts[3], &frame.ErrorDesc); err != nil {
			return nil, fmt.Errorf("invalid error description: %w", err)
		}
		frame.ErrorDetails = parts[4]
	default:
		return nil, fmt.Errorf("unknown message type id %d", frame.MessageType)
	}

	return frame, nil
}

// newCall builds the wire representation of a Call frame.
func newCall(uniqueID, action string, payload interface{}) []interface{} {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return []interface{}{CallType, uniqueID, action, payload}
}

// newCallResult builds the wire representation of a CallResult frame.
func newCallResult(uniqueID string, payload interface{}) []interface{} {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return []interface{}{CallResultType, uniqueID, payload}
}

// newCallError builds the wire representation of a CallError frame.
func newCallError(uniqueID, code, description string) []interface{} {
	return []interface{}{CallErrorType, uniqueID, code, description, map[string]interface{}{}}
}
