package db

import (
	"tradesense/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.Account{},
		&models.Position{},
		&models.Trade{},
		&models.Withdrawal{},
		&models.AdminActionLog{},
		&models.SystemSetting{},
	)
}
