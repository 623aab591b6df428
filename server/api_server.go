package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshalim/Smartcharge2026-sub000/internal/metrics"
	ocppserver "github.com/joshalim/Smartcharge2026-sub000/ocpp"
	"github.com/joshalim/Smartcharge2026-sub000/server/database"
)

// APIServer exposes the operator-facing query and command surface. It only
// talks to the central system through its exported methods and the command
// dispatcher, never to the registry or ledger internals.
type APIServer struct {
	cs         *ocppserver.CentralSystem
	dispatcher *ocppserver.RemoteCommandDispatcher
	config     *ocppserver.Config
	dbService  *database.Service
	httpServer *http.Server
	startedAt  time.Time
}

// NewAPIServer creates the operator API server. dbService may be nil when
// running without durable storage.
func NewAPIServer(cs *ocppserver.CentralSystem, dispatcher *ocppserver.RemoteCommandDispatcher, config *ocppserver.Config, dbService *database.Service) *APIServer {
	s := &APIServer{
		cs:         cs,
		dispatcher: dispatcher,
		config:     config,
		dbService:  dbService,
		startedAt:  time.Now().UTC(),
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", config.APIPort),
		Handler: s.Routes(),
	}
	return s
}

// Routes builds the router.
func (s *APIServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/charge-points", s.handleChargePoints)
	r.Get("/api/charge-points/{chargePointId}", s.handleChargePointByID)
	r.Get("/api/transactions/active", s.handleActiveTransactions)
	r.Get("/api/transactions", s.handleTransactions)

	r.Post("/api/commands/remote-start", s.handleRemoteStart)
	r.Post("/api/commands/remote-stop", s.handleRemoteStop)
	r.Post("/api/commands/reset", s.handleReset)
	r.Post("/api/commands/unlock-connector", s.handleUnlockConnector)
	r.Post("/api/commands/change-availability", s.handleChangeAvailability)
	r.Post("/api/commands/trigger-message", s.handleTriggerMessage)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	return r
}

// Start begins listening in a background goroutine.
func (s *APIServer) Start() error {
	go func() {
		log.Printf("HTTP API server listening on http://%s/api", s.config.APIAddr())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the API server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "running",
		"systemName":         s.config.SystemName,
		"serverTime":         time.Now().UTC(),
		"uptime":             time.Since(s.startedAt).Round(time.Second).String(),
		"chargersConnected":  s.cs.OnlineCount(),
		"activeTransactions": len(s.cs.ActiveTransactions()),
	})
}

func (s *APIServer) handleChargePoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cs.Connections())
}

func (s *APIServer) handleChargePointByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chargePointId")
	connection, online := s.cs.Connection(id)
	if !online {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, connection)
}

func (s *APIServer) handleActiveTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cs.ActiveTransactions())
}

// handleTransactions lists historical transactions from the database; it
// falls back to the in-memory active set when no database is configured.
func (s *APIServer) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if s.dbService == nil {
		writeJSON(w, http.StatusOK, s.cs.ActiveTransactions())
		return
	}
	transactions, err := s.dbService.ListTransactions(100)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error fetching transactions: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

type commandRequest struct {
	ChargePointID    string `json:"chargePointId"`
	ConnectorID      int    `json:"connectorId,omitempty"`
	IdTag            string `json:"idTag,omitempty"`
	TransactionID    int    `json:"transactionId,omitempty"`
	Type             string `json:"type,omitempty"`
	RequestedMessage string `json:"requestedMessage,omitempty"`
}

func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.ChargePointID == "" {
		http.Error(w, "chargePointId is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (s *APIServer) handleRemoteStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	if req.IdTag == "" {
		http.Error(w, "idTag is required", http.StatusBadRequest)
		return
	}
	status := s.dispatcher.RemoteStart(req.ChargePointID, req.ConnectorID, req.IdTag)
	metrics.ObserveCommand("RemoteStartTransaction", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *APIServer) handleRemoteStop(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	status := s.dispatcher.RemoteStop(req.ChargePointID, req.TransactionID)
	metrics.ObserveCommand("RemoteStopTransaction", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *APIServer) handleReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	status := s.dispatcher.Reset(req.ChargePointID, req.Type)
	metrics.ObserveCommand("Reset", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *APIServer) handleUnlockConnector(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	status := s.dispatcher.UnlockConnector(req.ChargePointID, req.ConnectorID)
	metrics.ObserveCommand("UnlockConnector", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *APIServer) handleChangeAvailability(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	status := s.dispatcher.ChangeAvailability(req.ChargePointID, req.ConnectorID, req.Type)
	metrics.ObserveCommand("ChangeAvailability", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *APIServer) handleTriggerMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	if req.RequestedMessage == "" {
		http.Error(w, "requestedMessage is required", http.StatusBadRequest)
		return
	}
	var connectorID *int
	if req.ConnectorID > 0 {
		connectorID = &req.ConnectorID
	}
	status := s.dispatcher.TriggerMessage(req.ChargePointID, req.RequestedMessage, connectorID)
	metrics.ObserveCommand("TriggerMessage", status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
