// Package dex provides a REST client for the exchange's market data and account
// endpoints, plus limit-order submission through an order relay.
package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/dexrisk/internal/logger"
	"github.com/rewired-gh/dexrisk/internal/models"
)

// ConnectivityError wraps transport failures and malformed upstream payloads.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// RejectedError is returned when the order relay refuses a submission.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// Rejected marks the error as a venue refusal rather than a transport failure.
func (e *RejectedError) Rejected() bool {
	return true
}

var errClient = errors.New("client error")

// ClientConfig holds transport tuning for the client.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	RateLimit      float64
}

// Client provides access to the DEX API
type Client struct {
	apiURL     string
	orderURL   string
	account    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        ClientConfig
}

// NewClient creates a new DEX client. account signs submitted orders.
func NewClient(apiURL, orderURL, account string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	return &Client{
		apiURL:     apiURL,
		orderURL:   orderURL,
		account:    account,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		cfg:        cfg,
	}
}

type marketRecord struct {
	MarketID int64  `json:"market_id"`
	Symbol   string `json:"symbol"`
	BidToken struct {
		Code string `json:"code"`
	} `json:"bid_token"`
	AskToken struct {
		Code string `json:"code"`
	} `json:"ask_token"`
}

// ResolveMarket looks symbol up in the exchange's market list.
func (c *Client) ResolveMarket(ctx context.Context, symbol string) (models.Market, bool, error) {
	var resp struct {
		Data []marketRecord `json:"data"`
	}
	if err := c.get(ctx, "/dex/v1/markets/all", nil, &resp); err != nil {
		return models.Market{}, false, &ConnectivityError{Op: "fetch markets", Err: err}
	}
	for _, r := range resp.Data {
		if r.Symbol != symbol {
			continue
		}
		m := models.Market{MarketID: r.MarketID, Symbol: r.Symbol, AskToken: r.AskToken.Code, BidToken: r.BidToken.Code}
		if m.AskToken == "" || m.BidToken == "" {
			ask, bid, err := models.ParseSymbol(symbol)
			if err != nil {
				return models.Market{}, false, err
			}
			m.AskToken, m.BidToken = ask, bid
		}
		if err := m.Validate(); err != nil {
			return models.Market{}, false, &ConnectivityError{Op: "fetch markets", Err: fmt.Errorf("invalid market %s: %w", symbol, err)}
		}
		return m, true, nil
	}
	return models.Market{}, false, nil
}

type levelRecord struct {
	Level decimal.NullDecimal `json:"level"`
	Bid   decimal.NullDecimal `json:"bid"`
	Ask   decimal.NullDecimal `json:"ask"`
	Count decimal.NullDecimal `json:"count"`
}

func (r levelRecord) toLevel(amount decimal.NullDecimal) (models.OrderBookLevel, error) {
	if !r.Level.Valid || !amount.Valid || !r.Count.Valid {
		return models.OrderBookLevel{}, errors.New("order book level is missing level, amount or count")
	}
	l := models.OrderBookLevel{Level: r.Level.Decimal, Amount: amount.Decimal, Count: r.Count.Decimal}
	return l, l.Validate()
}

// FetchOrderBook returns the top depth levels of each side, best first.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBook, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(depth))

	var resp struct {
		Data struct {
			Bids []levelRecord `json:"bids"`
			Asks []levelRecord `json:"asks"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/dex/v1/orders/depth", q, &resp); err != nil {
		return models.OrderBook{}, &ConnectivityError{Op: "fetch order book", Err: err}
	}

	book := models.OrderBook{
		Bids: make([]models.OrderBookLevel, 0, len(resp.Data.Bids)),
		Asks: make([]models.OrderBookLevel, 0, len(resp.Data.Asks)),
	}
	for _, r := range resp.Data.Bids {
		l, err := r.toLevel(r.Bid)
		if err != nil {
			return models.OrderBook{}, &ConnectivityError{Op: "fetch order book", Err: err}
		}
		book.Bids = append(book.Bids, l)
	}
	for _, r := range resp.Data.Asks {
		l, err := r.toLevel(r.Ask)
		if err != nil {
			return models.OrderBook{}, &ConnectivityError{Op: "fetch order book", Err: err}
		}
		book.Asks = append(book.Asks, l)
	}
	return book, nil
}

type tradeRecord struct {
	Price     decimal.NullDecimal `json:"price"`
	BidAmount decimal.NullDecimal `json:"bid_amount"`
	AskAmount decimal.NullDecimal `json:"ask_amount"`
	BlockTime string              `json:"block_time"`
}

// FetchTrades returns up to count recent trades ordered oldest to newest.
// The API lists newest first.
func (c *Client) FetchTrades(ctx context.Context, symbol string, count int) ([]models.Trade, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(count))

	var resp struct {
		Data []tradeRecord `json:"data"`
	}
	if err := c.get(ctx, "/dex/v1/trades/recent", q, &resp); err != nil {
		return nil, &ConnectivityError{Op: "fetch trades", Err: err}
	}

	n := len(resp.Data)
	out := make([]models.Trade, n)
	for i, r := range resp.Data {
		if !r.Price.Valid || !r.BidAmount.Valid || !r.AskAmount.Valid {
			return nil, &ConnectivityError{Op: "fetch trades", Err: errors.New("trade is missing price, bid_amount or ask_amount")}
		}
		t := models.Trade{Price: r.Price.Decimal, BidAmount: r.BidAmount.Decimal, AskAmount: r.AskAmount.Decimal}
		if r.BlockTime != "" {
			ts, err := time.Parse(time.RFC3339, r.BlockTime)
			if err != nil {
				return nil, &ConnectivityError{Op: "fetch trades", Err: fmt.Errorf("invalid block_time %q: %w", r.BlockTime, err)}
			}
			t.Timestamp = ts
		}
		if err := t.Validate(); err != nil {
			return nil, &ConnectivityError{Op: "fetch trades", Err: err}
		}
		out[n-1-i] = t
	}
	return out, nil
}

// FetchBalances returns the account's balances; an empty set means no funds.
func (c *Client) FetchBalances(ctx context.Context, account string) (models.BalanceSet, error) {
	q := url.Values{}
	q.Set("account", account)

	var resp struct {
		Data []struct {
			Currency string              `json:"currency"`
			Amount   decimal.NullDecimal `json:"amount"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/dex/v1/account/balances", q, &resp); err != nil {
		return nil, &ConnectivityError{Op: "fetch balances", Err: err}
	}

	balances := make([]models.Balance, 0, len(resp.Data))
	for _, r := range resp.Data {
		if !r.Amount.Valid {
			return nil, &ConnectivityError{Op: "fetch balances", Err: fmt.Errorf("balance %q is missing amount", r.Currency)}
		}
		b := models.Balance{Currency: r.Currency, Amount: r.Amount.Decimal}
		if err := b.Validate(); err != nil {
			return nil, &ConnectivityError{Op: "fetch balances", Err: err}
		}
		balances = append(balances, b)
	}
	return models.NewBalanceSet(balances), nil
}

// FetchOpenOrders returns every open order of the account across all markets.
func (c *Client) FetchOpenOrders(ctx context.Context, account string) ([]models.OpenOrder, error) {
	q := url.Values{}
	q.Set("account", account)
	q.Set("limit", "250")

	var resp struct {
		Data []struct {
			OrderID   json.Number `json:"order_id"`
			MarketID  *int64      `json:"market_id"`
			OrderSide int         `json:"order_side"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/dex/v1/orders/open", q, &resp); err != nil {
		return nil, &ConnectivityError{Op: "fetch open orders", Err: err}
	}

	orders := make([]models.OpenOrder, 0, len(resp.Data))
	for _, r := range resp.Data {
		o := models.OpenOrder{OrderID: r.OrderID.String()}
		if r.MarketID != nil {
			o.MarketID = *r.MarketID
		}
		switch r.OrderSide {
		case orderSideBuy:
			o.Side = models.SideBuy
		case orderSideSell:
			o.Side = models.SideSell
		}
		if err := o.Validate(); err != nil {
			return nil, &ConnectivityError{Op: "fetch open orders", Err: fmt.Errorf("order %q: %w", o.OrderID, err)}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// order_side values used on the wire
const (
	orderSideBuy  = 1
	orderSideSell = 2
)

type orderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	Account       string `json:"account"`
	Symbol        string `json:"symbol"`
	Side          int    `json:"order_side"`
	OrderType     string `json:"order_type"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// SubmitLimitOrder posts one limit order to the order relay. It is sent once;
// only the rate limiter can delay it.
func (c *Client) SubmitLimitOrder(ctx context.Context, symbol string, side models.Side, quantity, price decimal.Decimal) error {
	wireSide := orderSideBuy
	if side == models.SideSell {
		wireSide = orderSideSell
	}
	req := orderRequest{
		ClientOrderID: uuid.New().String(),
		Account:       c.account,
		Symbol:        symbol,
		Side:          wireSide,
		OrderType:     "limit",
		Quantity:      quantity.String(),
		Price:         price.String(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &ConnectivityError{Op: "submit order", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.orderURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &ConnectivityError{Op: "submit order", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectivityError{Op: "submit order", Err: err}
	}

	var out orderResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 || !out.Success {
		msg := out.Message
		if msg == "" {
			msg = string(raw)
		}
		return &RejectedError{StatusCode: resp.StatusCode, Message: msg}
	}

	logger.Debug("Order %s accepted for %s (client id %s)", out.OrderID, symbol, req.ClientOrderID)
	return nil
}

// get performs a GET against the API with rate limiting and linear-backoff retry.
// 4xx responses are not retried.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u, err := url.Parse(c.apiURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var lastErr error
	for i := 0; i < c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelayBase * time.Duration(i)):
			}
		}

		lastErr = c.doGet(ctx, u.String(), result)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, errClient) || ctx.Err() != nil {
			return lastErr
		}
		logger.Debug("GET %s failed (attempt %d/%d): %v", path, i+1, c.cfg.MaxRetries, lastErr)
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doGet(ctx context.Context, urlStr string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w (HTTP %d): %s", errClient, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", errClient, err)
	}
	return nil
}
