package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshalim/Smartcharge2026-sub000/internal/metrics"
	ocppserver "github.com/joshalim/Smartcharge2026-sub000/ocpp"
	"github.com/joshalim/Smartcharge2026-sub000/server"
	"github.com/joshalim/Smartcharge2026-sub000/server/database"
	env "github.com/joshalim/Smartcharge2026-sub000/utils"
)

func main() {
	log.SetOutput(os.Stdout)

	env.Initialize()

	dbConfig := database.NewConfig()
	log.Printf("Using database type: %s", dbConfig.Type)

	dbService, err := database.NewService(dbConfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	metrics.Register()

	// The central system publishes its lifecycle events to every
	// collaborator: durable storage and the metrics gauges.
	gateway := ocppserver.MultiGateway{
		database.NewRecorder(dbService),
		metrics.EventObserver{},
	}

	config := ocppserver.NewConfig()
	log.Printf("Central system %q: WebSocket port %d, API port %d",
		config.SystemName, config.WebSocketPort, config.APIPort)

	cs := ocppserver.NewCentralSystem(config, gateway)
	dispatcher := ocppserver.NewRemoteCommandDispatcher(cs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cs.StartHeartbeatWatch(ctx, 5*time.Minute, 3*time.Duration(config.HeartbeatInterval)*time.Second)

	ocppServer := ocppserver.NewOCPPServer(config, cs)
	if err := ocppServer.Start(); err != nil {
		log.Fatalf("Failed to start OCPP server: %v", err)
	}

	apiServer := server.NewAPIServer(cs, dispatcher, config, dbService)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("Failed to start API server: %v", err)
	}

	waitForShutdown(ocppServer, apiServer)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops both servers and
// closes all charge point sessions.
func waitForShutdown(ocppServer *ocppserver.OCPPServer, apiServer *server.APIServer) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Error during API server shutdown: %v", err)
	}
	if err := ocppServer.Shutdown(ctx); err != nil {
		log.Printf("Error during OCPP server shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}
