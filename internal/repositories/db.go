package repositories

import (
	"fmt"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database.
func Open(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbConfig.Driver {
	case "sqlite":
		dialector = sqlite.Open(dbConfig.Path)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			dbConfig.Host,
			dbConfig.Port,
			dbConfig.User,
			dbConfig.Password,
			dbConfig.DBName)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Candle{},
		&models.StrategyConfig{},
		&models.RiskLimit{},
		&models.Order{},
		&models.Position{},
		&models.BacktestRun{},
		&models.MLModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
