package database

import (
	"fmt"
	"time"

	"github.com/otcheredev/dicom-ingest/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance, following the teacher's package-level
// handle rather than threading a *gorm.DB through every constructor.
var DB *gorm.DB

// Config holds the connection parameters for the operational store that
// persists StudyJob/SeriesRecord/AuditLog rows.
type Config struct {
	DSN            string
	LogLevel       string
	MaxOpenConns   int
	MaxIdleConns   int
}

// Connect establishes the database connection and runs migrations.
func Connect(cfg Config) error {
	var gormLogger logger.Interface
	switch cfg.LogLevel {
	case "silent":
		gormLogger = logger.Default.LogMode(logger.Silent)
	case "error":
		gormLogger = logger.Default.LogMode(logger.Error)
	case "warn":
		gormLogger = logger.Default.LogMode(logger.Warn)
	default:
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	DB = db

	if err := AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("database connected and migrated")
	return nil
}

// AutoMigrate runs automatic migrations for all models.
func AutoMigrate() error {
	return DB.AutoMigrate(
		&models.StudyJob{},
		&models.SeriesRecord{},
		&models.AuditLog{},
	)
}

// Close closes the database connection.
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
