// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory sqlite database with every table migrated.
// A single connection keeps the memory database alive and serialises access.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Dec parses a decimal literal, failing the test on malformed input.
func Dec(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

// NullDec wraps a decimal literal as a set nullable value.
func NullDec(t testing.TB, s string) decimal.NullDecimal {
	t.Helper()
	return decimal.NewNullDecimal(Dec(t, s))
}

// UintPtr returns a pointer to v.
func UintPtr(v uint) *uint {
	return &v
}

// Strategy inserts an active paper strategy owned by userID.
func Strategy(t testing.TB, db *gorm.DB, userID uint, strategyType string, params map[string]float64) *models.StrategyConfig {
	t.Helper()
	s := &models.StrategyConfig{
		UserID:   userID,
		Name:     strategyType + " bot",
		Type:     strategyType,
		Params:   params,
		Symbol:   "BTC/USDT",
		Venue:    "binance",
		Mode:     models.ModePaper,
		IsActive: true,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create strategy: %v", err)
	}
	return s
}
