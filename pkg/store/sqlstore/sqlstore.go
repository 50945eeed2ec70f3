// Package sqlstore persists instance configurations and customer locker
// selections in a SQL database through GORM. Postgres is the production
// driver; SQLite serves local runs and tests.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tournevent/parcelgate/pkg/shipping"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// instanceRow is one shipping-zone instance; settings are kept as a JSON document.
type instanceRow struct {
	InstanceID int    `gorm:"primaryKey;autoIncrement:false"`
	Settings   string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (instanceRow) TableName() string { return "shipping_instances" }

// userLockerRow is the durable instance_id -> selection mapping of a customer.
type userLockerRow struct {
	CustomerID string `gorm:"primaryKey;size:64"`
	Selections string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (userLockerRow) TableName() string { return "user_lockers" }

// Store implements shipping.ConfigRepository and locker.DurableUserStore.
type Store struct {
	db *gorm.DB
}

// Open connects with the given driver ("postgres" or "sqlite") and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	return NewWithDB(ctx, conn)
}

// NewWithDB wraps an existing connection and migrates the schema.
func NewWithDB(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&instanceRow{}, &userLockerRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the config of an instance, or shipping.ErrInstanceNotFound.
func (s *Store) Get(ctx context.Context, instanceID int) (*shipping.ShippingConfig, error) {
	var row instanceRow
	err := s.db.WithContext(ctx).First(&row, "instance_id = ?", instanceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shipping.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading instance %d: %w", instanceID, err)
	}
	return decodeConfig(row)
}

// Save creates or replaces the config of an instance.
func (s *Store) Save(ctx context.Context, cfg *shipping.ShippingConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding instance %d: %w", cfg.InstanceID, err)
	}
	row := instanceRow{InstanceID: cfg.InstanceID, Settings: string(payload)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// List returns every instance ordered by id.
func (s *Store) List(ctx context.Context) ([]*shipping.ShippingConfig, error) {
	var rows []instanceRow
	if err := s.db.WithContext(ctx).Order("instance_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	result := make([]*shipping.ShippingConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := decodeConfig(row)
		if err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, nil
}

func decodeConfig(row instanceRow) (*shipping.ShippingConfig, error) {
	cfg := shipping.NewShippingConfig(row.InstanceID)
	if err := json.Unmarshal([]byte(row.Settings), cfg); err != nil {
		return nil, fmt.Errorf("decoding instance %d: %w", row.InstanceID, err)
	}
	cfg.InstanceID = row.InstanceID
	return cfg, nil
}

// GetSelections returns the stored mapping of a customer; empty when none.
func (s *Store) GetSelections(ctx context.Context, customerID string) (shipping.Selections, error) {
	var row userLockerRow
	err := s.db.WithContext(ctx).First(&row, "customer_id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shipping.Selections{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading selections of %s: %w", customerID, err)
	}

	sels := shipping.Selections{}
	if err := json.Unmarshal([]byte(row.Selections), &sels); err != nil {
		return nil, fmt.Errorf("decoding selections of %s: %w", customerID, err)
	}
	return sels, nil
}

// SetSelections replaces the mapping of a customer.
func (s *Store) SetSelections(ctx context.Context, customerID string, sels shipping.Selections) error {
	payload, err := json.Marshal(sels)
	if err != nil {
		return fmt.Errorf("encoding selections of %s: %w", customerID, err)
	}
	row := userLockerRow{CustomerID: customerID, Selections: string(payload)}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// Ping verifies the datasource is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
