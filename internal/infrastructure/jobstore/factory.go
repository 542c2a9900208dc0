package jobstore

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gstfiling/backend/internal/infrastructure/config"
	"github.com/gstfiling/backend/internal/infrastructure/logger"
)

// NewFromConfig builds the job store selected by configuration.
func NewFromConfig(cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.JobStore.Backend {
	case "memory":
		return NewInMemoryStore(cfg.JobStore.Retention), nil

	case "redis":
		return NewRedisStore(RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.JobStore.Retention)

	case "database":
		db, err := openDatabase(&cfg.Database, cfg.Log.Level, log)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, cfg.JobStore.Retention)

	default:
		return nil, fmt.Errorf("unknown jobstore backend %q", cfg.JobStore.Backend)
	}
}

func openDatabase(cfg *config.DatabaseConfig, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
