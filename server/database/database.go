package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	env "github.com/joshalim/Smartcharge2026-sub000/utils"
)

// DatabaseType selects the backing database.
type DatabaseType string

const (
	// SQLite database type
	SQLite DatabaseType = "sqlite"
	// PostgreSQL database type
	PostgreSQL DatabaseType = "postgres"
)

// Config holds database configuration.
type Config struct {
	Type         DatabaseType
	Host         string
	Port         int
	User         string
	Password     string
	DatabaseName string
	SSLMode      string
	SQLitePath   string

	// AutoMigrate controls whether the schema is migrated on startup.
	// Disabled for deployments where the schema is managed externally.
	AutoMigrate bool
}

// NewConfig creates a database configuration from environment variables.
func NewConfig() *Config {
	return &Config{
		Type:         DatabaseType(env.GetEnv("DB_TYPE", string(SQLite))),
		Host:         env.GetEnv("DB_HOST", "localhost"),
		Port:         env.GetEnvAsInt("DB_PORT", 5432),
		User:         env.GetEnv("DB_USER", "postgres"),
		Password:     env.GetEnv("DB_PASSWORD", "postgres"),
		DatabaseName: env.GetEnv("DB_NAME", "smartcharge"),
		SSLMode:      env.GetEnv("DB_SSL_MODE", "disable"),
		SQLitePath:   env.GetEnv("DB_SQLITE_PATH", "smartcharge.db"),
		AutoMigrate:  env.GetEnvAsBool("DB_AUTO_MIGRATE", true),
	}
}

// Service provides database operations for the gateway recorder and the
// operator API.
type Service struct {
	db       *gorm.DB
	dbConfig *Config
}

// NewService opens the configured database and migrates the schema.
func NewService(config *Config) (*Service, error) {
	var db *gorm.DB
	var err error

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	switch config.Type {
	case PostgreSQL:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DatabaseName, config.SSLMode)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	case SQLite:
		db, err = gorm.Open(sqlite.Open(config.SQLitePath), &gorm.Config{Logger: gormLogger})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.AutoMigrate {
		if err := db.AutoMigrate(&ChargePoint{}, &Transaction{}, &EventLog{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database schema: %w", err)
		}
	}

	return &Service{db: db, dbConfig: config}, nil
}

// GetDatabaseType returns the type of database being used.
func (s *Service) GetDatabaseType() DatabaseType {
	return s.dbConfig.Type
}

// SaveChargePoint creates or updates a charge point row.
func (s *Service) SaveChargePoint(cp *ChargePoint) error {
	return s.db.Save(cp).Error
}

// GetChargePoint retrieves a charge point by id.
func (s *Service) GetChargePoint(id string) (*ChargePoint, error) {
	var cp ChargePoint
	if err := s.db.First(&cp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListChargePoints retrieves all known charge points.
func (s *Service) ListChargePoints() ([]ChargePoint, error) {
	var chargePoints []ChargePoint
	if err := s.db.Find(&chargePoints).Error; err != nil {
		return nil, err
	}
	return chargePoints, nil
}

// CreateTransaction inserts a new transaction row.
func (s *Service) CreateTransaction(transaction *Transaction) error {
	return s.db.Create(transaction).Error
}

// GetTransaction retrieves a transaction by its OCPP transaction id.
func (s *Service) GetTransaction(transactionID int) (*Transaction, error) {
	var transaction Transaction
	if err := s.db.First(&transaction, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// UpdateTransaction saves changes to an existing transaction row.
func (s *Service) UpdateTransaction(transaction *Transaction) error {
	return s.db.Save(transaction).Error
}

// ListTransactions retrieves transactions, newest first.
func (s *Service) ListTransactions(limit int) ([]Transaction, error) {
	var transactions []Transaction
	query := s.db.Order("start_timestamp desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// AddEventLog appends a gateway event row.
func (s *Service) AddEventLog(entry *EventLog) error {
	return s.db.Create(entry).Error
}
