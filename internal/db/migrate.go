// Package db opens the session database and keeps its schema current.
package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diewo77/rbac-console/internal/config"
	"github.com/diewo77/rbac-console/internal/models"
)

// Attempts and Backoff bound the connection retry used while the
// database container starts.
var (
	Attempts = 5
	Backoff  = 2 * time.Second
)

// Open connects using cfg, retrying postgres a few times.
func Open(cfg config.DatabaseConfig, l *zap.Logger) (*gorm.DB, error) {
	if l == nil {
		l = zap.NewNop()
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		conn *gorm.DB
		err  error
	)
	attempts := Attempts
	if cfg.Driver == "sqlite" {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		l.Warn("database connection failed",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", i),
			zap.Int("of", attempts),
			zap.Error(err),
		)
		if i < attempts {
			time.Sleep(Backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" && cfg.Path == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	l.Info("database connected", zap.String("driver", cfg.Driver))
	return conn, nil
}

// Migrate runs AutoMigrate for all models.
// Call this at application startup or as part of a migration step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
