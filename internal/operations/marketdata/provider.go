// Package marketdata adapts venue APIs to the candle and ticker contract the
// signal, backtest and execution components consume.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"PaperTradeBot/internal/models"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedVenue = errors.New("unsupported venue")

// Ticker is the latest traded price of a symbol.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	Time      time.Time
}

// Provider serves one venue. Candles come back oldest first.
type Provider interface {
	GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	GetTicker(ctx context.Context, symbol string) (Ticker, error)
}

// Registry maps venue names to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register installs p for venue, replacing any previous provider.
func (r *Registry) Register(venue string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(venue)] = p
}

func (r *Registry) Provider(venue string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(venue)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnsupportedVenue, venue, strings.Join(r.venues(), ", "))
	}
	return p, nil
}

// Venues lists the registered venue names in sorted order.
func (r *Registry) Venues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.venues()
}

func (r *Registry) venues() []string {
	out := make([]string, 0, len(r.providers))
	for v := range r.providers {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// GetOHLCV fetches candles from the venue's provider. Every failure,
// including an unknown venue, is reported as models.ErrUpstream.
func (r *Registry) GetOHLCV(ctx context.Context, venue, symbol, timeframe string, limit int) ([]models.Candle, error) {
	p, err := r.Provider(venue)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	candles, err := p.GetOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s %s candles from %s: %w", models.ErrUpstream, symbol, timeframe, venue, err)
	}
	return candles, nil
}

// LastPrice returns the venue's last trade price. A missing or non-positive
// price is an upstream failure rather than a zero fill.
func (r *Registry) LastPrice(ctx context.Context, venue, symbol string) (decimal.Decimal, error) {
	p, err := r.Provider(venue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	t, err := p.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: ticker %s on %s: %w", models.ErrUpstream, symbol, venue, err)
	}
	if !t.LastPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no last price for %s on %s", models.ErrUpstream, symbol, venue)
	}
	return t.LastPrice, nil
}
