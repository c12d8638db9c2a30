package database

import (
	"fmt"
	"time"

	"marketplace-core/pkg/config"
	applog "marketplace-core/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the store selected by cfg.Driver
func Open(cfg config.DBConfig, debug bool) (*gorm.DB, error) {
	switch cfg.Driver {
	case "", "postgres":
		return ConnectPostgres(cfg.DSN(), debug)
	case "sqlite":
		return ConnectSQLite(cfg.SQLitePath, debug)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// ConnectPostgres connects to PostgreSQL
// dsn: "host=localhost user=gorm password=gorm dbname=gorm port=9920 sslmode=disable"
func ConnectPostgres(dsn string, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(debug)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	applog.Info("PostgreSQL connected")
	return db, nil
}

func logLevel(debug bool) logger.LogLevel {
	if debug {
		return logger.Info // print SQL while developing
	}
	return logger.Warn
}
