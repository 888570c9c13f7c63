package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZJUSCT/TPServer/internal/config"
	"github.com/ZJUSCT/TPServer/internal/database/models"
	"go.uber.org/zap"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Init(cfg config.Storage) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// Unique violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate schema
	err = db.AutoMigrate(
		&models.User{},
		&models.Beatmap{},
		&models.Score{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func openDialector(cfg config.Storage) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		if !isMemoryDSN(cfg.DSN) {
			path := strings.SplitN(strings.TrimPrefix(cfg.DSN, "file:"), "?", 2)[0]
			if _, err := os.Stat(path); os.IsNotExist(err) {
				zap.S().Infof("database file not found at '%s', creating directory for it.", path)
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					return nil, err
				}
			}
		}
		return sqlite.Open(withForeignKeys(cfg.DSN)), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withForeignKeys enables foreign key enforcement on every pooled connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}
