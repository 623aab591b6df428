package ocppserver

import (
	"sync"
	"time"
)

// Transaction status values.
const (
	TransactionActive    = "active"
	TransactionCompleted = "completed"
)

// Transaction is one charging session, created by StartTransaction and
// finalized by StopTransaction. MeterStop, StopTimestamp, Reason and
// EnergyKWh are populated only on completion.
type Transaction struct {
	TransactionID  int       `json:"transactionId"`
	ChargerID      string    `json:"chargerId"`
	ConnectorID    int       `json:"connectorId"`
	IdTag          string    `json:"idTag"`
	MeterStart     int       `json:"meterStart"`
	StartTimestamp time.Time `json:"startTimestamp"`
	MeterStop      int       `json:"meterStop,omitempty"`
	StopTimestamp  time.Time `json:"stopTimestamp,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	EnergyKWh      float64   `json:"energyKwh,omitempty"`
	Status         string    `json:"status"`
}

// connectionUpdater is the slice of the registry the ledger needs to keep
// active_transaction_id in sync.
type connectionUpdater interface {
	updateConnection(chargerID string, fn func(*ChargerConnection)) bool
	publish(event string, data map[string]interface{})
}

// TransactionLedger owns the transaction-id counter and all transaction
// records. It is the only place transactions are created or finalized; ids
// are globally unique, monotonically increasing and never reused.
type TransactionLedger struct {
	mutex        sync.Mutex
	lastID       int
	transactions map[int]*Transaction
	registry     connectionUpdater
}

func newTransactionLedger(registry connectionUpdater) *TransactionLedger {
	return &TransactionLedger{
		transactions: make(map[int]*Transaction),
		registry:     registry,
	}
}

// Start assigns the next transaction id and records the new transaction.
// The counter increment and map insert share one critical section, so two
// concurrent starts can never receive the same id. A charger has at most
// one active transaction: a start with no intervening stop supersedes the
// charger's open transaction, which charge points produce after losing
// power mid-session. The owning charger's active transaction pointer is
// set and events are published outside the ledger lock.
func (l *TransactionLedger) Start(chargerID string, connectorID int, idTag string, meterStart int, startedAt time.Time) int {
	l.mutex.Lock()
	var superseded *Transaction
	for _, transaction := range l.transactions {
		if transaction.ChargerID == chargerID && transaction.Status == TransactionActive {
			transaction.MeterStop = meterStart
			transaction.StopTimestamp = startedAt
			transaction.Reason = "PowerLoss"
			transaction.EnergyKWh = float64(meterStart-transaction.MeterStart) / 1000.0
			transaction.Status = TransactionCompleted
			copied := *transaction
			superseded = &copied
			break
		}
	}
	l.lastID++
	transactionID := l.lastID
	l.transactions[transactionID] = &Transaction{
		TransactionID:  transactionID,
		ChargerID:      chargerID,
		ConnectorID:    connectorID,
		IdTag:          idTag,
		MeterStart:     meterStart,
		StartTimestamp: startedAt,
		Status:         TransactionActive,
	}
	l.mutex.Unlock()

	l.registry.updateConnection(chargerID, func(c *ChargerConnection) {
		txID := transactionID
		c.ActiveTransactionID = &txID
	})

	if superseded != nil {
		l.registry.publish(EventTransactionStopped, map[string]interface{}{
			"transactionId": superseded.TransactionID,
			"chargerId":     superseded.ChargerID,
			"meterStop":     superseded.MeterStop,
			"energyKwh":     superseded.EnergyKWh,
			"reason":        superseded.Reason,
			"stopTimestamp": superseded.StopTimestamp.Format(time.RFC3339),
		})
	}

	l.registry.publish(EventTransactionStarted, map[string]interface{}{
		"transactionId":  transactionID,
		"chargerId":      chargerID,
		"connectorId":    connectorID,
		"idTag":          idTag,
		"meterStart":     meterStart,
		"startTimestamp": startedAt.Format(time.RFC3339),
	})

	return transactionID
}

// Stop finalizes a transaction. An unknown or already-completed id returns
// Invalid and leaves the ledger untouched; this is an expected outcome, not
// an error.
func (l *TransactionLedger) Stop(transactionID, meterStop int, stoppedAt time.Time, reason string) string {
	l.mutex.Lock()
	transaction, exists := l.transactions[transactionID]
	if !exists || transaction.Status == TransactionCompleted {
		l.mutex.Unlock()
		return StatusInvalid
	}

	transaction.MeterStop = meterStop
	transaction.StopTimestamp = stoppedAt
	transaction.Reason = reason
	transaction.EnergyKWh = float64(meterStop-transaction.MeterStart) / 1000.0
	transaction.Status = TransactionCompleted

	chargerID := transaction.ChargerID
	energyKWh := transaction.EnergyKWh
	l.mutex.Unlock()

	l.registry.updateConnection(chargerID, func(c *ChargerConnection) {
		if c.ActiveTransactionID != nil && *c.ActiveTransactionID == transactionID {
			c.ActiveTransactionID = nil
		}
	})

	l.registry.publish(EventTransactionStopped, map[string]interface{}{
		"transactionId": transactionID,
		"chargerId":     chargerID,
		"meterStop":     meterStop,
		"energyKwh":     energyKWh,
		"reason":        reason,
		"stopTimestamp": stoppedAt.Format(time.RFC3339),
	})

	return StatusAccepted
}

// Get returns a copy of the transaction with the given id.
func (l *TransactionLedger) Get(transactionID int) (Transaction, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	transaction, exists := l.transactions[transactionID]
	if !exists {
		return Transaction{}, false
	}
	return *transaction, true
}

// ActiveFor returns the charger's in-progress transaction, if any. The model
// allows at most one active transaction per charger.
func (l *TransactionLedger) ActiveFor(chargerID string) (Transaction, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, transaction := range l.transactions {
		if transaction.ChargerID == chargerID && transaction.Status == TransactionActive {
			return *transaction, true
		}
	}
	return Transaction{}, false
}

// ListActive returns copies of all in-progress transactions.
func (l *TransactionLedger) ListActive() []Transaction {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	active := make([]Transaction, 0)
	for _, transaction := range l.transactions {
		if transaction.Status == TransactionActive {
			active = append(active, *transaction)
		}
	}
	return active
}
