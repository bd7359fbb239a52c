// Package database persists orders, fills and detected opportunities
package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/paritybot/internal/engine"
)

type Database struct {
	db *gorm.DB
}

// Models

// OpportunityRecord is one detected mispricing.
type OpportunityRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MarketID  string `gorm:"index"`
	Question  string
	Direction string
	Magnitude decimal.Decimal `gorm:"type:decimal(10,6)"`
	BidPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	AskPrice  decimal.Decimal `gorm:"type:decimal(10,6)"`
	SpreadPct decimal.Decimal `gorm:"type:decimal(10,4)"`
	Volume24h decimal.Decimal `gorm:"type:decimal(20,2)"`
	StaleData bool
	CreatedAt time.Time
}

// OrderRecord is one placed order.
type OrderRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"index"`
	TokenID   string `gorm:"index"`
	Market    string
	Side      string
	Price     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size      decimal.Decimal `gorm:"type:decimal(20,6)"`
	Notional  decimal.Decimal `gorm:"type:decimal(20,6)"`
	DryRun    bool
	CreatedAt time.Time
}

// FillRecord is one filled order with its realized P&L (zero for buys;
// buys realize nothing until the matching sell fills).
type FillRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"index"`
	TokenID    string `gorm:"index"`
	Market     string
	Side       string
	Price      decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size       decimal.Decimal `gorm:"type:decimal(20,6)"`
	ProfitLoss decimal.Decimal `gorm:"type:decimal(20,6)"`
	CreatedAt  time.Time
}

// New opens the database. A postgres:// DSN selects PostgreSQL,
// anything else is treated as a SQLite file path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&OpportunityRecord{}, &OrderRecord{}, &FillRecord{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// RecordOpportunity stores a detected opportunity. Storage failures
// are logged, never surfaced; persistence must not break a scan.
func (d *Database) RecordOpportunity(opp engine.Opportunity) {
	rec := &OpportunityRecord{
		MarketID:  opp.MarketID,
		Question:  opp.Question,
		Direction: string(opp.Direction),
		Magnitude: opp.Magnitude,
		BidPrice:  opp.BidPrice,
		AskPrice:  opp.AskPrice,
		SpreadPct: opp.SpreadPct,
		Volume24h: opp.Volume24h,
		StaleData: opp.Stale,
	}
	if err := d.db.Create(rec).Error; err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to store opportunity")
	}
}

// RecordOrder stores a placed order.
func (d *Database) RecordOrder(order *engine.ActiveOrder) {
	rec := &OrderRecord{
		OrderID:  order.ID,
		TokenID:  order.TokenID,
		Market:   order.Market,
		Side:     string(order.Side),
		Price:    order.Price,
		Size:     order.Size,
		Notional: order.Notional(),
		DryRun:   strings.HasPrefix(order.ID, "dry-run-"),
	}
	if err := d.db.Create(rec).Error; err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to store order")
	}
}

// RecordFill stores a fill with its realized P&L.
func (d *Database) RecordFill(order *engine.ActiveOrder, profit decimal.Decimal) {
	rec := &FillRecord{
		OrderID:    order.ID,
		TokenID:    order.TokenID,
		Market:     order.Market,
		Side:       string(order.Side),
		Price:      order.Price,
		Size:       order.Size,
		ProfitLoss: profit,
	}
	if err := d.db.Create(rec).Error; err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to store fill")
	}
}

// GetTotalProfitLoss returns cumulative realized P&L across all runs.
func (d *Database) GetTotalProfitLoss() (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := d.db.Model(&FillRecord{}).Select("COALESCE(SUM(profit_loss), 0) as total").Scan(&result).Error
	return result.Total, err
}

// GetRecentOpportunities returns the latest detected opportunities.
func (d *Database) GetRecentOpportunities(limit int) ([]OpportunityRecord, error) {
	var opps []OpportunityRecord
	err := d.db.Order("created_at DESC").Limit(limit).Find(&opps).Error
	return opps, err
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
