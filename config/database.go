package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDatabase opens a gorm connection for one of the SQL store drivers.
// For sqlite the DSN falls back to the store path, creating its directory.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.IsTest() {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case "sqlite":
		dsn := cfg.StoreDSN
		if dsn == "" {
			if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
			dsn = cfg.StorePath
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(cfg.StoreDSN)
	case "postgres":
		dialector = postgres.Open(cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("store driver %q is not backed by SQL", cfg.StoreDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}
