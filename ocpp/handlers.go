package ocppserver

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// callError is a handler-level protocol error, answered with a CallError
// frame instead of a CallResult.
type callError struct {
	Code        string
	Description string
}

// dispatch routes an inbound Call to its action handler. Every known action
// produces a CallResult payload; unknown actions produce a NotImplemented
// CallError, as OCPP requires an answer for every Call.
func (cs *CentralSystem) dispatch(chargerID, action string, payload json.RawMessage) (interface{}, *callError) {
	switch action {
	case ActionBootNotification:
		return cs.handleBootNotification(chargerID, payload)
	case ActionHeartbeat:
		return cs.handleHeartbeat(chargerID)
	case ActionAuthorize:
		return cs.handleAuthorize(chargerID, payload)
	case ActionStatusNotification:
		return cs.handleStatusNotification(chargerID, payload)
	case ActionStartTransaction:
		return cs.handleStartTransaction(chargerID, payload)
	case ActionStopTransaction:
		return cs.handleStopTransaction(chargerID, payload)
	case ActionMeterValues:
		return cs.handleMeterValues(chargerID, payload)
	case ActionDataTransfer:
		return cs.handleDataTransfer(chargerID, payload)
	default:
		log.Printf("Unsupported action %s from %s", action, chargerID)
		return nil, &callError{Code: ErrNotImplemented, Description: fmt.Sprintf("action %s is not supported", action)}
	}
}

func (cs *CentralSystem) handleBootNotification(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req BootNotificationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid BootNotification payload"}
	}

	log.Printf("BootNotification from %s: Vendor=%s, Model=%s", chargerID, req.ChargePointVendor, req.ChargePointModel)

	now := time.Now().UTC()
	cs.updateConnection(chargerID, func(c *ChargerConnection) {
		c.Vendor = req.ChargePointVendor
		c.Model = req.ChargePointModel
		if req.ChargePointSerialNumber != "" {
			c.SerialNumber = req.ChargePointSerialNumber
		}
		if req.FirmwareVersion != "" {
			c.FirmwareVersion = req.FirmwareVersion
		}
		c.LastHeartbeat = now
	})

	return BootNotificationConfirmation{
		CurrentTime: now.Format(time.RFC3339),
		Interval:    cs.config.HeartbeatInterval,
		Status:      StatusAccepted,
	}, nil
}

func (cs *CentralSystem) handleHeartbeat(chargerID string) (interface{}, *callError) {
	now := time.Now().UTC()
	cs.updateConnection(chargerID, func(c *ChargerConnection) {
		c.LastHeartbeat = now
	})

	return HeartbeatConfirmation{CurrentTime: now.Format(time.RFC3339)}, nil
}

// handleAuthorize accepts every idTag. Authorization policy lives in the
// collaborator layer behind the gateway, not in the protocol core.
func (cs *CentralSystem) handleAuthorize(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req AuthorizeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid Authorize payload"}
	}

	log.Printf("Authorize request from %s: idTag=%s", chargerID, req.IdTag)

	return AuthorizeConfirmation{IdTagInfo: IdTagInfo{Status: StatusAccepted}}, nil
}

func (cs *CentralSystem) handleStatusNotification(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req StatusNotificationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid StatusNotification payload"}
	}

	log.Printf("StatusNotification from %s: ConnectorId=%d, Status=%s, ErrorCode=%s",
		chargerID, req.ConnectorId, req.Status, req.ErrorCode)

	cs.updateConnection(chargerID, func(c *ChargerConnection) {
		if req.ConnectorId == 0 {
			c.Status = req.Status
		} else {
			c.ConnectorStatus[req.ConnectorId] = req.Status
		}
	})

	// StatusNotification requires an empty confirmation.
	return map[string]interface{}{}, nil
}

func (cs *CentralSystem) handleStartTransaction(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req StartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid StartTransaction payload"}
	}

	startedAt := parseTimestamp(req.Timestamp)
	transactionID := cs.ledger.Start(chargerID, req.ConnectorId, req.IdTag, req.MeterStart, startedAt)

	log.Printf("StartTransaction from %s: ConnectorId=%d, IdTag=%s, MeterStart=%d -> transaction %d",
		chargerID, req.ConnectorId, req.IdTag, req.MeterStart, transactionID)

	return StartTransactionConfirmation{
		IdTagInfo:     IdTagInfo{Status: StatusAccepted},
		TransactionId: transactionID,
	}, nil
}

func (cs *CentralSystem) handleStopTransaction(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req StopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid StopTransaction payload"}
	}

	stoppedAt := parseTimestamp(req.Timestamp)
	status := cs.ledger.Stop(req.TransactionId, req.MeterStop, stoppedAt, req.Reason)

	log.Printf("StopTransaction from %s: TransactionId=%d, MeterStop=%d, Reason=%s -> %s",
		chargerID, req.TransactionId, req.MeterStop, req.Reason, status)

	return StopTransactionConfirmation{IdTagInfo: IdTagInfo{Status: status}}, nil
}

// handleMeterValues acknowledges the samples. Storing them is a collaborator
// concern; the core only validates the envelope.
func (cs *CentralSystem) handleMeterValues(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req MeterValuesRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid MeterValues payload"}
	}

	log.Printf("MeterValues from %s: ConnectorId=%d, %d samples", chargerID, req.ConnectorId, len(req.MeterValue))

	return map[string]interface{}{}, nil
}

func (cs *CentralSystem) handleDataTransfer(chargerID string, payload json.RawMessage) (interface{}, *callError) {
	var req DataTransferRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &callError{Code: ErrFormationViolation, Description: "invalid DataTransfer payload"}
	}

	log.Printf("DataTransfer from %s: VendorId=%s", chargerID, req.VendorId)

	return DataTransferConfirmation{Status: StatusAccepted}, nil
}

// parseTimestamp parses an RFC3339 timestamp, falling back to the current
// time when the field is absent or malformed.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Printf("Error parsing timestamp %q, using current time: %v", value, err)
		return time.Now().UTC()
	}
	return parsed
}
