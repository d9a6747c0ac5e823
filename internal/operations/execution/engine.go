// Package execution fills paper orders and nets them against open positions.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/marketdata"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/risk"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PriceSource quotes the last trade price of a symbol on a venue.
type PriceSource interface {
	LastPrice(ctx context.Context, venue, symbol string) (decimal.Decimal, error)
}

// OrderRequest is one order to simulate. Empty Venue, Mode and OrderType
// default to binance, paper and market.
type OrderRequest struct {
	UserID     uint
	StrategyID *uint
	Symbol     string
	Venue      string
	Side       string
	OrderType  string
	Quantity   decimal.Decimal
	Price      decimal.NullDecimal
	StopPrice  decimal.NullDecimal
	Mode       string
}

// Fill is the outcome of a successful submission.
type Fill struct {
	Order *models.Order
	// DroppedQuantity is the part of the order beyond the opposing position
	// it closed. It opens nothing.
	DroppedQuantity decimal.Decimal
}

type Engine struct {
	db     *gorm.DB
	gate   *risk.Gate
	prices PriceSource
	orders *repositories.OrderRepository
	posns  *repositories.PositionRepository
	locks  *keyedMutex
	now    func() time.Time
	log    *zap.Logger
}

func NewEngine(db *gorm.DB, gate *risk.Gate, prices PriceSource, log *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		gate:   gate,
		prices: prices,
		orders: repositories.NewOrderRepository(db),
		posns:  repositories.NewPositionRepository(db),
		locks:  newKeyedMutex(),
		now:    time.Now,
		log:    log,
	}
}

// WithClock sets the clock used for order timestamps and the risk day boundary.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.gate = e.gate.WithClock(now)
	return e
}

// Submit validates req, resolves its fill price, then runs the risk check,
// position netting and order insert as one transaction under the position
// key's lock. A risk denial returns *models.RiskDeniedError and writes nothing.
func (e *Engine) Submit(ctx context.Context, req OrderRequest) (*Fill, error) {
	req = withDefaults(req)
	if err := validate(req); err != nil {
		return nil, err
	}

	fillPrice, err := e.fillPrice(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(positionKey(req.UserID, req.Symbol, req.Mode))
	defer unlock()

	var fill *Fill
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		decision, err := e.gate.WithTx(tx).Check(ctx, risk.Request{
			UserID:     req.UserID,
			Symbol:     req.Symbol,
			Side:       req.Side,
			Quantity:   req.Quantity,
			StrategyID: req.StrategyID,
		})
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return &models.RiskDeniedError{Reason: decision.Reason}
		}

		realized, dropped, err := e.net(ctx, e.posns.WithTx(tx), req, fillPrice)
		if err != nil {
			return err
		}

		order := &models.Order{
			UserID:      req.UserID,
			StrategyID:  req.StrategyID,
			Symbol:      req.Symbol,
			Venue:       req.Venue,
			Side:        req.Side,
			OrderType:   req.OrderType,
			Quantity:    req.Quantity,
			Price:       req.Price,
			StopPrice:   req.StopPrice,
			FillPrice:   fillPrice,
			Status:      models.OrderStatusFilled,
			Mode:        req.Mode,
			RealizedPnL: realized,
			CreatedAt:   e.now().UTC(),
		}
		if err := e.orders.WithTx(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		fill = &Fill{Order: order, DroppedQuantity: dropped}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fill.DroppedQuantity.IsPositive() {
		e.log.Warn("order quantity beyond opposing position dropped",
			zap.Uint("order_id", fill.Order.ID),
			zap.String("symbol", req.Symbol),
			zap.String("dropped", fill.DroppedQuantity.String()))
	}
	e.log.Info("paper order filled",
		zap.Uint("order_id", fill.Order.ID),
		zap.Uint("user_id", req.UserID),
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.String("quantity", req.Quantity.String()),
		zap.String("fill_price", fillPrice.String()))
	return fill, nil
}

// net applies the order to the position pair and returns the realized PnL
// (set only when an opposing position was reduced) and the dropped quantity.
func (e *Engine) net(ctx context.Context, positions *repositories.PositionRepository, req OrderRequest, fillPrice decimal.Decimal) (decimal.NullDecimal, decimal.Decimal, error) {
	opposing, err := positions.Find(ctx, req.UserID, req.Symbol, models.OpposingSide(req.Side), req.Mode)
	if err != nil {
		return decimal.NullDecimal{}, decimal.Zero, fmt.Errorf("load opposing position: %w", err)
	}

	if opposing != nil && opposing.Quantity.IsPositive() {
		closed := decimal.Min(req.Quantity, opposing.Quantity)
		pnl := ClosePnL(opposing.Side, opposing.EntryPriceAvg, fillPrice, closed)

		opposing.Quantity = opposing.Quantity.Sub(closed)
		if opposing.Quantity.Sign() <= 0 {
			err = positions.Delete(ctx, opposing)
		} else {
			err = positions.Update(ctx, opposing)
		}
		if err != nil {
			return decimal.NullDecimal{}, decimal.Zero, fmt.Errorf("reduce %s position: %w", opposing.Side, err)
		}
		return decimal.NewNullDecimal(pnl), req.Quantity.Sub(closed), nil
	}

	side := models.PositionSideFor(req.Side)
	same, err := positions.Find(ctx, req.UserID, req.Symbol, side, req.Mode)
	if err != nil {
		return decimal.NullDecimal{}, decimal.Zero, fmt.Errorf("load %s position: %w", side, err)
	}
	if same == nil {
		err = positions.Create(ctx, &models.Position{
			UserID:        req.UserID,
			Symbol:        req.Symbol,
			Side:          side,
			Mode:          req.Mode,
			Quantity:      req.Quantity,
			EntryPriceAvg: fillPrice,
		})
	} else {
		same.EntryPriceAvg = WeightedAverage(same.Quantity, same.EntryPriceAvg, req.Quantity, fillPrice)
		same.Quantity = same.Quantity.Add(req.Quantity)
		err = positions.Update(ctx, same)
	}
	if err != nil {
		return decimal.NullDecimal{}, decimal.Zero, fmt.Errorf("grow %s position: %w", side, err)
	}
	return decimal.NullDecimal{}, decimal.Zero, nil
}

// ClosePnL is the profit of closing qty of a position on positionSide at price.
func ClosePnL(positionSide string, entry, price, qty decimal.Decimal) decimal.Decimal {
	if positionSide == models.PositionSideShort {
		return entry.Sub(price).Mul(qty)
	}
	return price.Sub(entry).Mul(qty)
}

// WeightedAverage blends an existing entry price with a new fill.
func WeightedAverage(oldQty, oldAvg, addQty, price decimal.Decimal) decimal.Decimal {
	total := oldQty.Add(addQty)
	if total.IsZero() {
		return price
	}
	return oldQty.Mul(oldAvg).Add(addQty.Mul(price)).Div(total)
}

func (e *Engine) fillPrice(ctx context.Context, req OrderRequest) (decimal.Decimal, error) {
	if models.UsesLimitPrice(req.OrderType) && req.Price.Valid && req.Price.Decimal.IsPositive() {
		return req.Price.Decimal, nil
	}
	price, err := e.prices.LastPrice(ctx, req.Venue, req.Symbol)
	if err != nil {
		if errors.Is(err, models.ErrUpstream) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	return price, nil
}

// ListOrders returns a user's orders newest first.
func (e *Engine) ListOrders(ctx context.Context, userID uint, filter repositories.OrderFilter) ([]models.Order, error) {
	return e.orders.ListByUser(ctx, userID, filter)
}

// ListPositions returns a user's open positions.
func (e *Engine) ListPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	return e.posns.FindByUser(ctx, userID)
}

func withDefaults(req OrderRequest) OrderRequest {
	if req.Venue == "" {
		req.Venue = marketdata.VenueBinance
	}
	if req.Mode == "" {
		req.Mode = models.ModePaper
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeMarket
	}
	return req
}

func validate(req OrderRequest) error {
	switch {
	case req.UserID == 0:
		return fmt.Errorf("%w: missing user", models.ErrInvalidOrder)
	case req.Symbol == "":
		return fmt.Errorf("%w: missing symbol", models.ErrInvalidOrder)
	case req.Side != models.SideBuy && req.Side != models.SideSell:
		return fmt.Errorf("%w: side must be buy or sell, got %q", models.ErrInvalidOrder, req.Side)
	case !req.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidOrder)
	case !models.ValidOrderType(req.OrderType):
		return fmt.Errorf("%w: unknown order type %q", models.ErrInvalidOrder, req.OrderType)
	case req.Mode != models.ModePaper && req.Mode != models.ModeLive:
		return fmt.Errorf("%w: unknown mode %q", models.ErrInvalidOrder, req.Mode)
	case req.Price.Valid && req.Price.Decimal.IsNegative():
		return fmt.Errorf("%w: negative price", models.ErrInvalidOrder)
	case req.StopPrice.Valid && req.StopPrice.Decimal.IsNegative():
		return fmt.Errorf("%w: negative stop price", models.ErrInvalidOrder)
	}
	return nil
}
