package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN string
}

// Open connects to MySQL without migrating. Writes run outside an implicit
// transaction; every write in this service touches a single statement.
func Open(config DatabaseConfig) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(config.DSN), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// InitDB initializes database connection and migrates the schema.
func InitDB(config DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(config)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database ready", zap.Int("tables", len(allModels())))
	return db, nil
}

// Migrate creates or updates every table and the patient_lab_results view.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	err := db.Migrator().CreateView(PatientLabResult{}.TableName(), gorm.ViewOption{
		Replace: true,
		Query:   PatientLabResultsQuery(db),
	})
	if err != nil {
		return fmt.Errorf("create view %s: %w", PatientLabResult{}.TableName(), err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&Patient{},
		&ScanLog{},
		&LabResult{},
		&LocationInconsistency{},
		&Notification{},
	}
}
