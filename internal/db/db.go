package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ps-rental-backend/config"
	"ps-rental-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.TVUnit{},
		&model.Rental{},
		&model.AddOn{},
		&model.MenuItem{},
		&model.Payment{},
		&model.Shift{},
		&model.User{},
		&model.License{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	migrateLegacyTotalPrice(db)

	log.Println("Database initialization complete.")
	return db, nil
}

// migrateLegacyTotalPrice folds the old total_price column into grand_total
// for databases created by earlier releases, where the grand total and the
// displayed price were tracked separately and drifted apart. grand_total is
// authoritative afterwards; total_price survives only as a JSON alias.
func migrateLegacyTotalPrice(db *gorm.DB) {
	if !db.Migrator().HasColumn(&model.Rental{}, "total_price") {
		return
	}
	log.Println("Migrating legacy total_price column into grand_total...")
	res := db.Exec("UPDATE rentals SET grand_total = total_price WHERE grand_total = 0 AND total_price > 0")
	if res.Error != nil {
		log.Printf("Warning: legacy total_price migration failed: %v. Continuing.", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Backfilled grand_total on %d legacy rentals", res.RowsAffected)
	}
	if err := db.Migrator().DropColumn(&model.Rental{}, "total_price"); err != nil {
		log.Printf("Warning: could not drop legacy total_price column: %v. Continuing.", err)
	}
}
