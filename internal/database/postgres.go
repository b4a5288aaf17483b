package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/config"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

func ConnectPostgres(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to PostgreSQL")
	return db, nil
}

// Migrate creates or updates every ledger table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Property{},
		&models.CheckoutSession{},
		&models.Payment{},
		&models.Booking{},
		&models.RentalAgreement{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
