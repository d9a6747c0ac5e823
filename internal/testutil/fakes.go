package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PaperTradeBot/internal/models"
	"PaperTradeBot/internal/operations/marketdata"

	"github.com/shopspring/decimal"
)

// Provider is an in-memory marketdata.Provider keyed by symbol.
type Provider struct {
	mu        sync.Mutex
	Candles   map[string][]models.Candle
	Prices    map[string]decimal.Decimal
	OHLCVErr  map[string]error
	TickerErr error
	Calls     int
}

func NewProvider() *Provider {
	return &Provider{
		Candles:  make(map[string][]models.Candle),
		Prices:   make(map[string]decimal.Decimal),
		OHLCVErr: make(map[string]error),
	}
}

func (p *Provider) GetOHLCV(_ context.Context, symbol, _ string, limit int) ([]models.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	if err := p.OHLCVErr[symbol]; err != nil {
		return nil, err
	}
	candles := p.Candles[symbol]
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (p *Provider) GetTicker(_ context.Context, symbol string) (marketdata.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TickerErr != nil {
		return marketdata.Ticker{}, p.TickerErr
	}
	price, ok := p.Prices[symbol]
	if !ok {
		return marketdata.Ticker{}, fmt.Errorf("no price for %s", symbol)
	}
	return marketdata.Ticker{Symbol: symbol, LastPrice: price, Time: time.Now().UTC()}, nil
}

// SetPrice sets the ticker price for symbol.
func (p *Provider) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prices[symbol] = price
}

// Registry wraps p as the "binance" venue.
func Registry(p marketdata.Provider) *marketdata.Registry {
	r := marketdata.NewRegistry()
	r.Register(marketdata.VenueBinance, p)
	return r
}

// Series builds hourly candles for symbol on the binance venue from closes.
// Volume is constant at 1.
func Series(symbol string, start time.Time, closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Venue:     marketdata.VenueBinance,
			Symbol:    symbol,
			TimeFrame: models.TimeFrame1h,
			OpenTime:  start.Add(time.Duration(i) * time.Hour).UTC(),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

// Predictor is a canned ml.Predictor.
type Predictor struct {
	mu     sync.Mutex
	Result int
	Err    error
	Calls  int
}

func (p *Predictor) Predict(_ context.Context, _, _ uint, _ []float64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	return p.Result, p.Err
}
