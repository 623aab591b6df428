package ocppserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
)

// OCPPServer hosts the central system's WebSocket endpoint. Charge points
// connect at /ocpp/1.6/{chargePointId}.
type OCPPServer struct {
	config *Config
	cs     *CentralSystem
	server *http.Server
}

// NewOCPPServer creates the WebSocket server for the given central system.
func NewOCPPServer(config *Config, cs *CentralSystem) *OCPPServer {
	mux := http.NewServeMux()
	mux.Handle("/ocpp/1.6/", cs)

	return &OCPPServer{
		config: config,
		cs:     cs,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", config.WebSocketPort),
			Handler: mux,
		},
	}
}

// Start begins listening in a background goroutine.
func (s *OCPPServer) Start() error {
	go func() {
		log.Printf("OCPP Central System listening on ws://%s/ocpp/1.6/", s.config.WebSocketAddr())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("OCPP server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown stops accepting new connections and closes every charge point
// session.
func (s *OCPPServer) Shutdown(ctx context.Context) error {
	s.cs.CloseAll()
	return s.server.Shutdown(ctx)
}
