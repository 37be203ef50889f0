// internal/database/connection.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established successfully")
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB, log *logrus.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Error("Error closing database connection")
	} else {
		log.Info("Database connection closed successfully")
	}
}

// AutoMigrate creates or updates every table owned by the deal engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Deal{},
		&models.DealAuditLog{},
		&models.ChangeRequest{},
		&models.DeleteRequest{},
		&models.TerminationRequest{},
		&models.ProfitDistribution{},
		&models.Transaction{},
		&models.PaymentAttempt{},
		&models.PaymentFailureLog{},
		&models.PaymentRefundLog{},
		&models.Message{},
		&models.Product{},
		&models.OrderItem{},
	)
}

func RunMigrations(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		createIndexes(db, log)
	}

	log.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB, log *logrus.Logger) {
	indexes := []string{
		// Discovery
		"CREATE INDEX IF NOT EXISTS idx_deals_discovery ON deals(status, is_approved, is_visible, created_at DESC) WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_deals_parties ON deals(author_id, investor_id)",

		// One open request of each kind per deal
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_change_requests_pending ON change_requests(deal_id) WHERE status = 'pending' AND deleted_at IS NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_delete_requests_pending ON delete_requests(deal_id) WHERE status = 'pending' AND deleted_at IS NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_termination_requests_pending ON termination_requests(deal_id) WHERE status = 'pending' AND deleted_at IS NULL",

		// Ledgers
		"CREATE INDEX IF NOT EXISTS idx_transactions_deal_created ON transactions(deal_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_profit_distributions_window ON profit_distributions(deal_id, start_date, end_date)",
		"CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages(recipient_id, is_read, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_deal_audit_logs_created ON deal_audit_logs(deal_id, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.WithError(err).WithField("statement", index).Warn("Failed to create index")
		}
	}
}

// SeedSystemActor makes sure the configured system identity exists so that
// system-authored messages resolve to a real user row.
func SeedSystemActor(db *gorm.DB, id uuid.UUID, log *logrus.Logger) error {
	if id == uuid.Nil {
		log.Warn("SYSTEM_ACTOR_ID not configured; system messages will use a nil sender")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up system actor: %w", err)
	}
	if count > 0 {
		return nil
	}

	actor := &models.User{
		BaseModel:   models.BaseModel{ID: id},
		Email:       fmt.Sprintf("system+%s@dealflow.local", id.String()[:8]),
		DisplayName: "System",
	}
	if err := db.Create(actor).Error; err != nil {
		return fmt.Errorf("failed to create system actor: %w", err)
	}

	log.WithField("user_id", id).Info("System actor created")
	return nil
}

// WithTransaction runs fn inside a database transaction bound to ctx.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
