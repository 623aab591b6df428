package ocppserver

import (
	"encoding/json"
	"testing"
)

func TestDecodeCallFrame(t *testing.T) {
	frame, err := decodeFrame([]byte(`[2,"uid-1","Heartbeat",{}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.MessageType != CallType || frame.UniqueID != "uid-1" || frame.Action != "Heartbeat" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if string(frame.Payload) != "{}" {
		t.Fatalf("unexpected payload: %s", frame.Payload)
	}
}

func TestDecodeCallResultFrame(t *testing.T) {
	frame, err := decodeFrame([]byte(`[3,"uid-2",{"status":"Accepted"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.MessageType != CallResultType || frame.UniqueID != "uid-2" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	var conf StatusConfirmation
	if err := json.Unmarshal(frame.Payload, &conf); err != nil || conf.Status != StatusAccepted {
		t.Fatalf("unexpected payload: %s", frame.Payload)
	}
}

func TestDecodeCallErrorFrame(t *testing.T) {
	frame, err := decodeFrame([]byte(`[4,"uid-3","NotImplemented","no such action",{}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.MessageType != CallErrorType || frame.ErrorCode != ErrNotImplemented {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.ErrorDesc != "no such action" {
		t.Fatalf("unexpected error description: %q", frame.ErrorDesc)
	}
}

func TestDecodeFrameRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"json object", `{"messageType":2}`},
		{"empty array", `[]`},
		{"unknown message type", `[9,"uid","Heartbeat",{}]`},
		{"call missing payload", `[2,"uid","Heartbeat"]`},
		{"call non-string action", `[2,"uid",42,{}]`},
		{"call non-string id", `[2,7,"Heartbeat",{}]`},
		{"result missing payload", `[3,"uid"]`},
		{"error missing description", `[4,"uid","NotImplemented"]`},
	}
	for _, tc := range cases {
		if _, err := decodeFrame([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected error for %s", tc.name, tc.raw)
		}
	}
}

func TestNewCallShapesFrame(t *testing.T) {
	frame := newCall("uid-4", "Reset", ResetRequest{Type: ResetTypeSoft})
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	decoded, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if decoded.MessageType != CallType || decoded.Action != "Reset" || decoded.UniqueID != "uid-4" {
		t.Fatalf("unexpected frame: %+v", decoded)
	}
}

func TestNewCallResultNilPayloadBecomesEmptyObject(t *testing.T) {
	data, err := json.Marshal(newCallResult("uid-5", nil))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	frame, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if string(frame.Payload) != "{}" {
		t.Fatalf("expected empty object payload, got %s", frame.Payload)
	}
}

func TestNewCallErrorShapesFrame(t *testing.T) {
	data, err := json.Marshal(newCallError("uid-6", ErrProtocolError, "bad frame"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	frame, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if frame.MessageType != CallErrorType || frame.ErrorCode != ErrProtocolError || frame.ErrorDesc != "bad frame" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
