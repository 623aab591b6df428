package ocppserver

import (
	"fmt"
	"time"

	env "github.com/joshalim/Smartcharge2026-sub000/utils"
)

// Config holds the central system configuration.
type Config struct {
	// Host is the domain name or IP address the servers bind to.
	Host string

	// WebSocketPort is the port the OCPP WebSocket server listens on.
	WebSocketPort int

	// APIPort is the port the operator HTTP API listens on.
	APIPort int

	// SystemName identifies this central system instance.
	SystemName string

	// HeartbeatInterval is the interval in seconds reported to charge
	// points in the BootNotification confirmation.
	HeartbeatInterval int

	// CallTimeout bounds how long an outbound Call waits for its
	// CallResult before the pending slot is released.
	CallTimeout time.Duration

	// PingInterval and PongTimeout are the WebSocket keep-alive
	// parameters for charge point connections.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// NewConfig creates a configuration from environment variables with defaults.
func NewConfig() *Config {
	return &Config{
		Host:              env.GetEnv("OCPP_HOST", "localhost"),
		WebSocketPort:     env.GetEnvAsInt("OCPP_WEBSOCKET_PORT", 9000),
		APIPort:           env.GetEnvAsInt("OCPP_API_PORT", 9001),
		SystemName:        env.GetEnv("OCPP_SYSTEM_NAME", "smartcharge-central"),
		HeartbeatInterval: env.GetEnvAsInt("OCPP_HEARTBEAT_INTERVAL", 300),
		CallTimeout:       time.Duration(env.GetEnvAsInt("OCPP_CALL_TIMEOUT_MS", 30000)) * time.Millisecond,
		PingInterval:      time.Duration(env.GetEnvAsInt("OCPP_PING_INTERVAL_SEC", 30)) * time.Second,
		PongTimeout:       time.Duration(env.GetEnvAsInt("OCPP_PONG_TIMEOUT_SEC", 10)) * time.Second,
	}
}

// WebSocketAddr returns the WebSocket listen address in "host:port" form.
func (c *Config) WebSocketAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.WebSocketPort)
}

// APIAddr returns the API listen address in "host:port" form.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.APIPort)
}
