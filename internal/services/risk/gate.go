// Package risk approves or denies prospective orders against the user's
// configured position and daily-loss limits.
package risk

import (
	"context"
	"fmt"
	"time"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision is the gate's verdict. Reason is set only on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// Request describes the order being checked.
type Request struct {
	UserID     uint
	Symbol     string
	Side       string
	Quantity   decimal.Decimal
	StrategyID *uint
}

type Gate struct {
	limits    *repositories.RiskLimitRepository
	positions *repositories.PositionRepository
	orders    *repositories.OrderRepository
	now       func() time.Time
	log       *zap.Logger
}

func NewGate(db *gorm.DB, log *zap.Logger) *Gate {
	return &Gate{
		limits:    repositories.NewRiskLimitRepository(db),
		positions: repositories.NewPositionRepository(db),
		orders:    repositories.NewOrderRepository(db),
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the wall clock used for the UTC day boundary.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	cp := *g
	cp.now = now
	return &cp
}

// WithTx returns a gate that reads through an open transaction, so the
// execution engine can evaluate limits inside its critical section.
func (g *Gate) WithTx(tx *gorm.DB) *Gate {
	cp := *g
	cp.limits = g.limits.WithTx(tx)
	cp.positions = g.positions.WithTx(tx)
	cp.orders = g.orders.WithTx(tx)
	return &cp
}

// Check evaluates the scoped limit row. No row means no constraint.
func (g *Gate) Check(ctx context.Context, req Request) (Decision, error) {
	limit, err := g.limits.FindScoped(ctx, req.UserID, req.StrategyID)
	if err != nil {
		return Decision{}, fmt.Errorf("load risk limit: %w", err)
	}
	if limit == nil {
		return Decision{Allowed: true}, nil
	}

	if max, ok := active(limit.MaxPositionSize); ok {
		existing, err := g.positions.SumQuantity(ctx, req.UserID, req.Symbol, models.PositionSideFor(req.Side))
		if err != nil {
			return Decision{}, fmt.Errorf("sum position quantity: %w", err)
		}
		total := existing.Add(req.Quantity)
		if total.GreaterThan(max) {
			return g.deny(req, fmt.Sprintf("max position size exceeded (limit: %s, existing+new: %s)", max, total)), nil
		}
	}

	if lossLimit, ok := active(limit.DailyLossLimit); ok {
		pnl, err := g.orders.SumRealizedPnLSince(ctx, req.UserID, StartOfUTCDay(g.now()))
		if err != nil {
			return Decision{}, fmt.Errorf("sum daily realized pnl: %w", err)
		}
		if pnl.LessThan(lossLimit.Neg()) {
			return g.deny(req, fmt.Sprintf("daily loss limit exceeded (limit: %s, realized today: %s)", lossLimit, pnl)), nil
		}
	}

	return Decision{Allowed: true}, nil
}

func (g *Gate) deny(req Request, reason string) Decision {
	g.log.Info("order denied by risk gate",
		zap.Uint("user_id", req.UserID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.String("quantity", req.Quantity.String()),
		zap.String("reason", reason))
	return Decision{Allowed: false, Reason: reason}
}

// active treats null, zero and negative limits as unconstrained.
func active(v decimal.NullDecimal) (decimal.Decimal, bool) {
	if !v.Valid || !v.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return v.Decimal, true
}

// StartOfUTCDay truncates t to 00:00:00 UTC of the same UTC date.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
