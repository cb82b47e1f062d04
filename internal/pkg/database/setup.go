package database

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/ManuelReschke/MeterGate/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the process wide connection, set by SetupDatabase.
var DB *gorm.DB

// GetDB returns the connection opened by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// DSN builds the MySQL data source name.
func DSN(cfg *config.Config) string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}

// SetupDatabase connects with retries. In dev the schema is auto-migrated;
// elsewhere cmd/migrate owns it.
func SetupDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if !cfg.IsDev() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       DSN(cfg), // data source name
			DefaultStringSize:         256,      // default size for string fields
			DisableDatetimePrecision:  true,     // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,     // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,     // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,    // auto configure based on currently MySQL version
		}), gormCfg)
		if err == nil {
			if cfg.IsDev() {
				if err := AutoMigrate(DB); err != nil {
					return nil, fmt.Errorf("auto migrate: %w", err)
				}
			}
			return DB, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

// AutoMigrate creates or updates the tables of all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Subscriber{},
		&models.PaymentRecord{},
		&models.Credential{},
		&models.AccessLogEntry{},
		&models.BillingWebhookEvent{},
	)
}
