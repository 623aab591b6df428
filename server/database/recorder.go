package database

import (
	"encoding/json"
	"log"
	"time"

	ocppserver "github.com/joshalim/Smartcharge2026-sub000/ocpp"
)

// Recorder is the durable side of the central system's gateway: it turns
// lifecycle events into database rows. Failures are logged and swallowed so
// a broken database can never stall protocol processing.
type Recorder struct {
	service *Service
}

// NewRecorder creates a gateway recorder backed by the given service.
func NewRecorder(service *Service) *Recorder {
	return &Recorder{service: service}
}

// Publish implements the central system's Gateway interface.
func (r *Recorder) Publish(event string, data map[string]interface{}) {
	chargerID := asString(data, "chargerId")

	switch event {
	case ocppserver.EventChargerConnected:
		r.markConnection(chargerID, true)
	case ocppserver.EventChargerDisconnected:
		r.markConnection(chargerID, false)
	case ocppserver.EventTransactionStarted:
		transaction := &Transaction{
			TransactionID:  asInt(data, "transactionId"),
			ChargePointID:  chargerID,
			ConnectorID:    asInt(data, "connectorId"),
			IdTag:          asString(data, "idTag"),
			MeterStart:     asInt(data, "meterStart"),
			StartTimestamp: asTime(data, "startTimestamp"),
		}
		if err := r.service.CreateTransaction(transaction); err != nil {
			log.Printf("Error saving transaction %d: %v", transaction.TransactionID, err)
		}
	case ocppserver.EventTransactionStopped:
		r.finalizeTransaction(data)
	}

	r.appendEventLog(event, chargerID, data)
}

func (r *Recorder) markConnection(chargerID string, connected bool) {
	if chargerID == "" {
		return
	}

	now := time.Now().UTC()
	cp, err := r.service.GetChargePoint(chargerID)
	if err != nil {
		cp = &ChargePoint{
			ID:        chargerID,
			Status:    "Unknown",
			CreatedAt: now,
		}
	}
	cp.IsConnected = connected
	if connected {
		cp.LastConnected = now
	}
	cp.UpdatedAt = now

	if err := r.service.SaveChargePoint(cp); err != nil {
		log.Printf("Error updating charge point %s connection state: %v", chargerID, err)
	}
}

func (r *Recorder) finalizeTransaction(data map[string]interface{}) {
	transactionID := asInt(data, "transactionId")
	transaction, err := r.service.GetTransaction(transactionID)
	if err != nil {
		log.Printf("Transaction %d not found for stop event: %v", transactionID, err)
		return
	}

	transaction.MeterStop = asInt(data, "meterStop")
	transaction.StopTimestamp = asTime(data, "stopTimestamp")
	transaction.StopReason = asString(data, "reason")
	transaction.EnergyDelivered = asFloat(data, "energyKwh")
	transaction.IsComplete = true

	if err := r.service.UpdateTransaction(transaction); err != nil {
		log.Printf("Error updating transaction %d: %v", transactionID, err)
	}
}

func (r *Recorder) appendEventLog(event, chargerID string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}

	entry := &EventLog{
		ChargePointID: chargerID,
		Timestamp:     time.Now().UTC(),
		Event:         event,
		Payload:       string(payload),
	}
	if err := r.service.AddEventLog(entry); err != nil {
		log.Printf("Error saving event log: %v", err)
	}
}

func asString(data map[string]interface{}, key string) string {
	value, _ := data[key].(string)
	return value
}

func asInt(data map[string]interface{}, key string) int {
	switch value := data[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	default:
		return 0
	}
}

func asFloat(data map[string]interface{}, key string) float64 {
	switch value := data[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	default:
		return 0
	}
}

func asTime(data map[string]interface{}, key string) time.Time {
	raw, _ := data[key].(string)
	if raw == "" {
		return time.Now().UTC()
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed
}
