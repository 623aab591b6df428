package ocppserver

// Actions initiated by the charge point.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionAuthorize          = "Authorize"
	ActionStatusNotification = "StatusNotification"
	ActionStartTransaction   = "StartTransaction"
	ActionStopTransaction    = "StopTransaction"
	ActionMeterValues        = "MeterValues"
	ActionDataTransfer       = "DataTransfer"
)

// Actions initiated by the central system.
const (
	ActionRemoteStartTransaction = "RemoteStartTransaction"
	ActionRemoteStopTransaction  = "RemoteStopTransaction"
	ActionReset                  = "Reset"
	ActionUnlockConnector        = "UnlockConnector"
	ActionChangeAvailability     = "ChangeAvailability"
	ActionTriggerMessage         = "TriggerMessage"
)

// Common status values used in confirmations.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
	StatusInvalid  = "Invalid"
)

// Reset types for the Reset command.
const (
	ResetTypeSoft = "Soft"
	ResetTypeHard = "Hard"
)

// Availability types for the ChangeAvailability command.
const (
	AvailabilityOperative   = "Operative"
	AvailabilityInoperative = "Inoperative"
)

// BootNotificationRequest is sent by a charge point after (re)boot.
type BootNotificationRequest struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
}

// BootNotificationConfirmation is the central system's reply.
type BootNotificationConfirmation struct {
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
	Status      string `json:"status"`
}

// HeartbeatConfirmation carries the central system's current time.
type HeartbeatConfirmation struct {
	CurrentTime string `json:"currentTime"`
}

// AuthorizeRequest asks whether an idTag may charge.
type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

// IdTagInfo reports the authorization status of an idTag.
type IdTagInfo struct {
	Status string `json:"status"`
}

// AuthorizeConfirmation is the reply to an Authorize request.
type AuthorizeConfirmation struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// StatusNotificationRequest reports a connector status change.
// Connector 0 denotes the charge point as a whole.
type StatusNotificationRequest struct {
	ConnectorId     int    `json:"connectorId"`
	ErrorCode       string `json:"errorCode"`
	Status          string `json:"status"`
	Info            string `json:"info,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
	VendorId        string `json:"vendorId,omitempty"`
	VendorErrorCode string `json:"vendorErrorCode,omitempty"`
}

// StartTransactionRequest begins a charging transaction.
type StartTransactionRequest struct {
	ConnectorId   int    `json:"connectorId"`
	IdTag         string `json:"idTag"`
	MeterStart    int    `json:"meterStart"`
	Timestamp     string `json:"timestamp"`
	ReservationId *int   `json:"reservationId,omitempty"`
}

// StartTransactionConfirmation returns the assigned transaction id.
type StartTransactionConfirmation struct {
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
	TransactionId int       `json:"transactionId"`
}

// StopTransactionRequest ends a charging transaction.
type StopTransactionRequest struct {
	TransactionId int    `json:"transactionId"`
	MeterStop     int    `json:"meterStop"`
	Timestamp     string `json:"timestamp"`
	Reason        string `json:"reason,omitempty"`
	IdTag         string `json:"idTag,omitempty"`
}

// StopTransactionConfirmation is the reply to a StopTransaction request.
type StopTransactionConfirmation struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// SampledValue is a single measured value inside a MeterValues request.
type SampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// MeterValue groups sampled values taken at one point in time.
type MeterValue struct {
	Timestamp    string         `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// MeterValuesRequest carries periodic meter samples.
type MeterValuesRequest struct {
	ConnectorId   int          `json:"connectorId"`
	TransactionId *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

// DataTransferRequest carries vendor-specific data.
type DataTransferRequest struct {
	VendorId  string `json:"vendorId"`
	MessageId string `json:"messageId,omitempty"`
	Data      string `json:"data,omitempty"`
}

// DataTransferConfirmation is the reply to a DataTransfer request.
type DataTransferConfirmation struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

// RemoteStartTransactionRequest asks a charge point to start charging.
type RemoteStartTransactionRequest struct {
	ConnectorId *int   `json:"connectorId,omitempty"`
	IdTag       string `json:"idTag"`
}

// RemoteStopTransactionRequest asks a charge point to stop a transaction.
type RemoteStopTransactionRequest struct {
	TransactionId int `json:"transactionId"`
}

// ResetRequest asks a charge point to reboot.
type ResetRequest struct {
	Type string `json:"type"`
}

// UnlockConnectorRequest asks a charge point to unlock a connector.
type UnlockConnectorRequest struct {
	ConnectorId int `json:"connectorId"`
}

// ChangeAvailabilityRequest changes a connector's availability.
type ChangeAvailabilityRequest struct {
	ConnectorId int    `json:"connectorId"`
	Type        string `json:"type"`
}

// TriggerMessageRequest asks the charge point to send a specific message.
type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	ConnectorId      *int   `json:"connectorId,omitempty"`
}

// StatusConfirmation is the generic single-status reply most remote commands
// return (RemoteStartTransaction, Reset, UnlockConnector, ...).
type StatusConfirmation struct {
	Status string `json:"status"`
}
