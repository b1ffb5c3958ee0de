package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/translogix/tms/internal/models"
	"github.com/translogix/tms/pkg/logger"
)

// claimColumns are written exclusively by the lock coordinator. Ordinary
// saves omit them so a business update can never clobber a live claim.
var claimColumns = []string{"claim_holder", "claim_stamped_at"}

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard logger
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.DashboardOrder{}, &models.HandoverNote{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) CreateOrder(order *models.DashboardOrder) error {
	if err := db.Conn.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetOrder(id string) (*models.DashboardOrder, error) {
	var order models.DashboardOrder
	if err := db.Conn.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

func (db *PostgresDB) ListOrders(status string, limit int) ([]*models.DashboardOrder, error) {
	var orders []*models.DashboardOrder
	query := db.Conn.Order("scheduled_at")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %s", err)
	}

	return orders, nil
}

func (db *PostgresDB) UpdateOrder(order *models.DashboardOrder) error {
	if err := db.Conn.Model(order).Select("*").Omit(claimColumns...).Updates(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %s", err)
	}

	return nil
}

func (db *PostgresDB) DeleteOrder(id string) error {
	if err := db.Conn.Where("id = ?", id).Delete(&models.DashboardOrder{}).Error; err != nil {
		return fmt.Errorf("failed to delete order: %s", err)
	}

	return nil
}

func (db *PostgresDB) CreateHandover(note *models.HandoverNote) error {
	if err := db.Conn.Create(note).Error; err != nil {
		return fmt.Errorf("failed to create handover note: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetHandover(id string) (*models.HandoverNote, error) {
	var note models.HandoverNote
	if err := db.Conn.Where("id = ?", id).First(&note).Error; err != nil {
		return nil, fmt.Errorf("failed to get handover note: %w", err)
	}

	return &note, nil
}

func (db *PostgresDB) ListHandovers(pinnedOnly bool, limit int) ([]*models.HandoverNote, error) {
	var notes []*models.HandoverNote
	query := db.Conn.Order("created_at DESC")
	if pinnedOnly {
		query = query.Where("pinned = ?", true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("failed to list handover notes: %s", err)
	}

	return notes, nil
}

func (db *PostgresDB) UpdateHandover(note *models.HandoverNote) error {
	if err := db.Conn.Model(note).Select("*").Omit(claimColumns...).Updates(note).Error; err != nil {
		return fmt.Errorf("failed to update handover note: %s", err)
	}

	return nil
}

func (db *PostgresDB) DeleteHandover(id string) error {
	if err := db.Conn.Where("id = ?", id).Delete(&models.HandoverNote{}).Error; err != nil {
		return fmt.Errorf("failed to delete handover note: %s", err)
	}

	return nil
}

func (db *PostgresDB) CreateUser(user *models.User) error {
	if err := db.Conn.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %s", err)
	}

	return nil
}

func (db *PostgresDB) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := db.Conn.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
