package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database/models"
)

var DB *gorm.DB

// getLogLevel returns appropriate log level based on environment
func getLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.DBHost == "localhost" || cfg.DBHost == "127.0.0.1" {
		return logger.Warn
	}
	return logger.Error
}

// DSN builds the Postgres connection string from config
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)
}

// Open connects to Postgres and configures the pool without migrating.
func Open(cfg *config.Config, level logger.LogLevel) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitDatabase initializes the database connection and runs migrations
func InitDatabase() error {
	cfg := config.GetConfig()

	var err error
	DB, err = Open(cfg, getLogLevel(cfg))
	if err != nil {
		return err
	}

	zap.L().Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
	)

	if err := RunMigrations(DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Models lists every table owned by the application, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Organization{},
		&models.Shop{},
		&models.User{},
		&models.Agent{},
		&models.Setting{},
		&models.ChatMessage{},
		&models.LoginAttempt{},
	}
}

// AutoMigrator is satisfied by *gorm.DB.
type AutoMigrator interface {
	AutoMigrate(dst ...interface{}) error
}

// Migrate runs AutoMigrate for every model, including tables that already exist.
func Migrate(db AutoMigrator) error {
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return nil
}

// RunMigrations creates missing tables on service startup. Column changes on
// existing tables are left to `admin migrate`.
func RunMigrations(db *gorm.DB) error {
	migrator := db.Migrator()
	missing := 0
	for _, model := range Models() {
		if !migrator.HasTable(model) {
			zap.L().Info("creating table", zap.String("model", fmt.Sprintf("%T", model)))
			missing++
		}
	}

	if missing == 0 {
		zap.L().Info("database schema present - skipping migration")
		return nil
	}

	if err := Migrate(db); err != nil {
		return err
	}
	zap.L().Info("database migrations completed", zap.Int("tables_created", missing))
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDatabase closes the database connection
func CloseDatabase() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// DropAll drops every application table, dependants first.
func DropAll(db *gorm.DB) error {
	all := Models()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", all[i], err)
		}
		zap.L().Info("table dropped", zap.String("model", fmt.Sprintf("%T", all[i])))
	}
	return nil
}
