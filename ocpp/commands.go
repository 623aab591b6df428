package ocppserver

import (
	"encoding/json"
	"fmt"
	"log"
)

// RemoteCommandDispatcher issues operator-initiated commands to connected
// charge points. Every method returns a terminal status string: a charger
// that is offline, a transport fault, or a timeout all map to Rejected
// rather than an error, since callers are expected to branch on the
// outcome, not handle exceptions.
type RemoteCommandDispatcher struct {
	cs *CentralSystem
}

// NewRemoteCommandDispatcher creates a dispatcher bound to a central system.
func NewRemoteCommandDispatcher(cs *CentralSystem) *RemoteCommandDispatcher {
	return &RemoteCommandDispatcher{cs: cs}
}

// send resolves the charge point, issues the Call and extracts the status
// from its confirmation. No network traffic happens for an offline charger.
func (d *RemoteCommandDispatcher) send(chargerID, action string, payload interface{}) string {
	session := d.cs.session(chargerID)
	if session == nil {
		log.Printf("%s rejected: charge point %s is not connected", action, chargerID)
		return StatusRejected
	}

	raw, err := session.Call(action, payload)
	if err != nil {
		log.Printf("%s to %s failed: %v", action, chargerID, err)
		return StatusRejected
	}

	var confirmation StatusConfirmation
	if err := json.Unmarshal(raw, &confirmation); err != nil || confirmation.Status == "" {
		log.Printf("%s to %s returned an unexpected confirmation: %s", action, chargerID, raw)
		return StatusRejected
	}
	return confirmation.Status
}

// RemoteStart asks a charge point to begin charging. The charge point is
// expected to follow up with its own StartTransaction; no transaction is
// created here.
func (d *RemoteCommandDispatcher) RemoteStart(chargerID string, connectorID int, idTag string) string {
	request := RemoteStartTransactionRequest{IdTag: idTag}
	if connectorID > 0 {
		request.ConnectorId = &connectorID
	}
	return d.send(chargerID, ActionRemoteStartTransaction, request)
}

// RemoteStop asks a charge point to stop the given transaction.
func (d *RemoteCommandDispatcher) RemoteStop(chargerID string, transactionID int) string {
	return d.send(chargerID, ActionRemoteStopTransaction, RemoteStopTransactionRequest{TransactionId: transactionID})
}

// Reset asks a charge point to reboot. resetType must be Soft or Hard.
func (d *RemoteCommandDispatcher) Reset(chargerID, resetType string) string {
	if resetType != ResetTypeSoft && resetType != ResetTypeHard {
		log.Printf("Reset rejected: invalid reset type %q", resetType)
		return StatusRejected
	}
	return d.send(chargerID, ActionReset, ResetRequest{Type: resetType})
}

// UnlockConnector asks a charge point to unlock a connector. The returned
// status is the charge point's own (Unlocked, UnlockFailed, NotSupported).
func (d *RemoteCommandDispatcher) UnlockConnector(chargerID string, connectorID int) string {
	return d.send(chargerID, ActionUnlockConnector, UnlockConnectorRequest{ConnectorId: connectorID})
}

// ChangeAvailability switches a connector between Operative and Inoperative.
func (d *RemoteCommandDispatcher) ChangeAvailability(chargerID string, connectorID int, availabilityType string) string {
	if availabilityType != AvailabilityOperative && availabilityType != AvailabilityInoperative {
		log.Printf("ChangeAvailability rejected: invalid availability type %q", availabilityType)
		return StatusRejected
	}
	return d.send(chargerID, ActionChangeAvailability, ChangeAvailabilityRequest{
		ConnectorId: connectorID,
		Type:        availabilityType,
	})
}

// TriggerMessage asks the charge point to send a specific message, e.g. a
// StatusNotification or MeterValues sample.
func (d *RemoteCommandDispatcher) TriggerMessage(chargerID, requestedMessage string, connectorID *int) string {
	return d.send(chargerID, ActionTriggerMessage, TriggerMessageRequest{
		RequestedMessage: requestedMessage,
		ConnectorId:      connectorID,
	})
}

// SendCommand issues an arbitrary OCPP action and returns the raw
// confirmation payload. Escape hatch for actions without a dedicated method.
func (d *RemoteCommandDispatcher) SendCommand(chargerID, action string, payload map[string]interface{}) (json.RawMessage, error) {
	session := d.cs.session(chargerID)
	if session == nil {
		return nil, fmt.Errorf("charge point %s is not connected", chargerID)
	}
	return session.Call(action, payload)
}
