package server

import (
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"forum/internal/config"
)

// ConnectDB opens PostgreSQL when a DB host is configured and the SQLite
// file otherwise, then migrates the schema.
func ConnectDB(cfg config.Server, logger *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.UsePostgres() {
		logger.WithField("host", cfg.DBHost).Info("Connecting to PostgreSQL database")
		dialector = postgres.Open(cfg.PostgresDSN())
	} else {
		logger.WithField("path", cfg.Database).Info("Connecting to SQLite database")
		dialector = sqlite.Open(cfg.Database)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to the database")
		return nil, err
	}
	if err := Migrate(db); err != nil {
		logger.WithError(err).Error("Failed to migrate the database")
		return nil, err
	}

	logger.Info("Database connection successful")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Topic{}, &Message{})
}
