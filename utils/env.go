package env

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Initialize loads environment variables from the first .env file found.
func Initialize() {
	exPath, err := os.Executable()
	if err != nil {
		log.Printf("Warning: Could not determine executable path: %v", err)
		exPath = "."
	}
	exDir := filepath.Dir(exPath)

	locations := []string{
		".env",                       // Current directory
		filepath.Join(exDir, ".env"), // Executable directory
		"/app/.env",                  // Docker container path
		"/etc/smartcharge/.env",      // System config path
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err == nil {
				log.Printf("Loaded environment from %s", location)
				return
			}
		}
	}

	// No .env file found; the process environment is used as-is, which is
	// the normal case in containers.
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsBool gets an environment variable as a boolean.
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// GetEnvAsInt gets an environment variable as an integer.
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
