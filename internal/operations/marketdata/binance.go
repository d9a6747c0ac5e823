package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"PaperTradeBot/internal/models"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const VenueBinance = "binance"

// BinanceProvider reads futures klines and prices through a rate limited,
// retrying client.
type BinanceProvider struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	log         *zap.Logger
}

func NewBinanceProvider(apiKey, secretKey string, log *zap.Logger) *BinanceProvider {
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	return &BinanceProvider{
		client:      futuresClient,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
		maxRetries:  3,
		backoff:     100 * time.Millisecond,
		log:         log,
	}
}

func (p *BinanceProvider) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	var klines []*futures.Kline
	err := p.withRetry(ctx, "klines", func() error {
		var err error
		klines, err = p.client.NewKlinesService().
			Symbol(NormalizeSymbol(symbol)).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return candlesFromKlines(VenueBinance, symbol, timeframe, klines)
}

func (p *BinanceProvider) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	var prices []*futures.SymbolPrice
	err := p.withRetry(ctx, "price", func() error {
		var err error
		prices, err = p.client.NewListPricesService().
			Symbol(NormalizeSymbol(symbol)).
			Do(ctx)
		return err
	})
	if err != nil {
		return Ticker{}, err
	}
	return tickerFromPrices(symbol, prices)
}

// withRetry waits on the limiter before every attempt and backs off
// exponentially between failures.
func (p *BinanceProvider) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if werr := p.rateLimiter.Wait(ctx); werr != nil {
			return werr
		}

		if err = call(); err == nil {
			return nil
		}

		if attempt == p.maxRetries {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * p.backoff
		p.log.Debug("binance call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", waitTime),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return fmt.Errorf("binance %s: %w", op, err)
}

// NormalizeSymbol turns "btc/usdt" or "BTC-USDT" into Binance's "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}

func candlesFromKlines(venue, symbol, timeframe string, klines []*futures.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		var (
			c   = models.Candle{Venue: venue, Symbol: symbol, TimeFrame: timeframe}
			err error
		)
		c.OpenTime = time.UnixMilli(k.OpenTime).UTC()
		if c.Open, err = parseFloat(k.Open); err != nil {
			return nil, err
		}
		if c.High, err = parseFloat(k.High); err != nil {
			return nil, err
		}
		if c.Low, err = parseFloat(k.Low); err != nil {
			return nil, err
		}
		if c.Close, err = parseFloat(k.Close); err != nil {
			return nil, err
		}
		if c.Volume, err = parseFloat(k.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func tickerFromPrices(symbol string, prices []*futures.SymbolPrice) (Ticker, error) {
	want := NormalizeSymbol(symbol)
	for _, sp := range prices {
		if sp == nil || sp.Symbol != want {
			continue
		}
		last, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return Ticker{}, fmt.Errorf("parse price %q: %w", sp.Price, err)
		}
		return Ticker{Symbol: symbol, LastPrice: last, Time: time.Now().UTC()}, nil
	}
	return Ticker{}, fmt.Errorf("no price returned for %s", want)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}
