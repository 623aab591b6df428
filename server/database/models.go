package database

import (
	"time"
)

// ChargePoint mirrors the live registry entry for a charge point so the
// fleet survives restarts. IsConnected tracks the gateway's
// connected/disconnected events.
type ChargePoint struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Status        string    `json:"status"`
	IsConnected   bool      `json:"isConnected"`
	LastConnected time.Time `json:"lastConnected"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Transaction is the durable record of a charging transaction.
type Transaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TransactionID   int       `gorm:"index" json:"transactionId"`
	ChargePointID   string    `json:"chargePointId"`
	ConnectorID     int       `json:"connectorId"`
	IdTag           string    `json:"idTag"`
	StartTimestamp  time.Time `json:"startTimestamp"`
	StopTimestamp   time.Time `json:"stopTimestamp,omitempty"`
	MeterStart      int       `json:"meterStart"`                // Wh
	MeterStop       int       `json:"meterStop,omitempty"`       // Wh
	EnergyDelivered float64   `json:"energyDelivered,omitempty"` // kWh
	StopReason      string    `json:"stopReason,omitempty"`
	IsComplete      bool      `json:"isComplete"`
}

// EventLog is one gateway event as received from the central system.
type EventLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChargePointID string    `json:"chargePointId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Event         string    `json:"event"`
	Payload       string    `gorm:"type:text" json:"payload"`
}
