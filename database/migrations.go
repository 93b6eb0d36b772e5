package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/sreedevirajkumar/candle/models"
)

// Migrate creates or updates the payment and order tables inside a
// transaction where the dialect allows it.
func Migrate(db *gorm.DB) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.AutoMigrate(&models.PaymentRecord{}, &models.PaymentSession{}, &models.Order{}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	log.Println("[database] auto-migration completed")
	return nil
}
