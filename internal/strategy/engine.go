// Package strategy implements the risk strategy decision pipeline: market
// statistics, liquidity gating, position sizing, order-book depth search and the
// engine that runs them once per cycle.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/models"
)

// Reasons attached to outcomes that end a cycle without an order.
const (
	ReasonOpenOrders       = "orders on the books"
	ReasonShortHistory     = "not enough trade history"
	ReasonLowVolume        = "insufficient trading volume"
	ReasonNoBalances       = "no balances"
	ReasonHighVolatility   = "volatility too high"
	ReasonSideways         = "sideways trend"
	ReasonZeroPosition     = "position size is zero"
	ReasonInsufficientBook = "insufficient book depth"
)

// MarketData is the read side of the exchange.
type MarketData interface {
	// ResolveMarket returns false when the exchange does not list symbol.
	ResolveMarket(ctx context.Context, symbol string) (models.Market, bool, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBook, error)
	// FetchTrades returns up to count trades, oldest first.
	FetchTrades(ctx context.Context, symbol string, count int) ([]models.Trade, error)
	// FetchBalances returns an empty set when the account holds nothing.
	FetchBalances(ctx context.Context, account string) (models.BalanceSet, error)
	FetchOpenOrders(ctx context.Context, account string) ([]models.OpenOrder, error)
}

// ConfigurationError is fatal: no cycle can run until configuration changes.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

type Config struct {
	Account               string
	Symbol                string
	RiskFactor            decimal.Decimal
	HistoricalDataCount   int
	MinimumVolumeFraction decimal.Decimal
	MaximumVolatility     decimal.Decimal
	OrderBookDepth        int
	DepthParticipation    decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		RiskFactor:            decimal.RequireFromString("0.05"),
		HistoricalDataCount:   24,
		MinimumVolumeFraction: decimal.RequireFromString("0.8"),
		MaximumVolatility:     decimal.RequireFromString("0.1"),
		OrderBookDepth:        100,
		DepthParticipation:    DefaultDepthParticipation,
	}
}

// Engine runs one evaluate-and-act cycle per call to Evaluate. It keeps no state
// between cycles other than its immutable config and the resolved market.
type Engine struct {
	data     MarketData
	executor *Executor
	config   Config
	market   *models.Market

	gate    LiquidityGate
	sizer   PositionSizer
	locator DepthLocator

	now func() time.Time
}

func New(data MarketData, executor *Executor, config Config) *Engine {
	return &Engine{
		data:     data,
		executor: executor,
		config:   config,
		gate:     LiquidityGate{MinimumVolumeFraction: config.MinimumVolumeFraction},
		sizer:    PositionSizer{RiskFactor: config.RiskFactor},
		locator:  DepthLocator{Participation: config.DepthParticipation},
		now:      time.Now,
	}
}

// Prepare resolves the configured market. An unknown symbol is a *ConfigurationError.
func (e *Engine) Prepare(ctx context.Context) error {
	market, ok, err := e.data.ResolveMarket(ctx, e.config.Symbol)
	if err != nil {
		return fmt.Errorf("failed to resolve market %s: %w", e.config.Symbol, err)
	}
	if !ok {
		return &ConfigurationError{Msg: fmt.Sprintf("market %s does not exist", e.config.Symbol)}
	}
	if market.AskToken == "" || market.BidToken == "" {
		market.AskToken, market.BidToken, err = models.ParseSymbol(market.Symbol)
		if err != nil {
			return &ConfigurationError{Msg: err.Error()}
		}
	}
	e.market = &market
	return nil
}

// Market returns the resolved market, or nil before Prepare succeeds.
func (e *Engine) Market() *models.Market {
	return e.market
}

// Evaluate runs the decision pipeline once. Policy aborts and missing funds are
// reported through the returned Outcome; transport failures, bad upstream data and
// order rejections are returned as errors.
func (e *Engine) Evaluate(ctx context.Context) (models.Outcome, error) {
	if e.market == nil {
		if err := e.Prepare(ctx); err != nil {
			return models.Outcome{}, err
		}
	}
	symbol := e.config.Symbol

	openOrders, err := e.data.FetchOpenOrders(ctx, e.config.Account)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to fetch open orders: %w", err)
	}
	if countForMarket(openOrders, e.market.MarketID) > 0 {
		return e.noAction(ReasonOpenOrders, nil), nil
	}

	book, err := e.data.FetchOrderBook(ctx, symbol, e.config.OrderBookDepth)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to fetch order book: %w", err)
	}
	history, err := e.data.FetchTrades(ctx, symbol, e.config.HistoricalDataCount)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to fetch trades: %w", err)
	}
	if len(history) < 2 {
		return e.noAction(ReasonShortHistory, nil), nil
	}

	if !e.gate.Sufficient(history) {
		return e.noAction(ReasonLowVolume, &models.MarketStats{TotalVolume: TotalVolume(history)}), nil
	}

	balances, err := e.data.FetchBalances(ctx, e.config.Account)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to fetch balances: %w", err)
	}
	if len(balances) == 0 {
		return e.errorOutcome(ReasonNoBalances, nil), nil
	}

	stats, err := ComputeStats(history)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to compute market statistics: %w", err)
	}

	if stats.Volatility.GreaterThan(e.config.MaximumVolatility) {
		return e.noAction(ReasonHighVolatility, &stats), nil
	}

	side, ok := stats.Trend.Side()
	if !ok {
		return e.noAction(ReasonSideways, &stats), nil
	}

	token := e.market.TokenFor(side)
	balance, ok := balances.Lookup(token)
	if !ok || !balance.Amount.IsPositive() {
		return e.errorOutcome("no balance of "+token, &stats), nil
	}

	price := history[len(history)-1].Price
	quantity := e.sizer.Size(balance.Amount, price, stats.Volatility)
	if !quantity.IsPositive() {
		return e.noAction(ReasonZeroPosition, &stats), nil
	}

	level, ok := e.locator.Locate(side, book, stats.TotalVolume)
	if !ok {
		return e.noAction(ReasonInsufficientBook, &stats), nil
	}

	intent := models.OrderIntent{Side: side, Quantity: quantity, Price: level}
	if err := e.executor.Submit(ctx, symbol, intent); err != nil {
		return models.Outcome{}, err
	}

	return models.Outcome{
		Kind:   models.OutcomeExecuted,
		Symbol: symbol,
		Reason: fmt.Sprintf("%s %s %s at %s", side, quantity, symbol, level),
		Intent: &intent,
		Stats:  &stats,
		At:     e.now(),
	}, nil
}

func (e *Engine) noAction(reason string, stats *models.MarketStats) models.Outcome {
	return models.Outcome{Kind: models.OutcomeNoAction, Symbol: e.config.Symbol, Reason: reason, Stats: stats, At: e.now()}
}

func (e *Engine) errorOutcome(reason string, stats *models.MarketStats) models.Outcome {
	return models.Outcome{Kind: models.OutcomeError, Symbol: e.config.Symbol, Reason: reason, Stats: stats, At: e.now()}
}

func countForMarket(orders []models.OpenOrder, marketID int64) int {
	n := 0
	for _, o := range orders {
		if o.MarketID == marketID {
			n++
		}
	}
	return n
}

// IsConfigurationError reports whether err must stop the process.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
