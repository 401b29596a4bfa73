package db

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/civictickets/internal/models"
)

// New creates a new GORM database connection using the provided DSN.
func New(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// Migrate creates or updates the tables of the ticket store.
func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(&models.Principal{}, &models.Ticket{}, &models.TicketEvent{}), "auto migrate")
}
