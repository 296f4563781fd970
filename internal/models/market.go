// Package models defines the core domain entities: markets, trades, order book
// snapshots, balances, open orders and the decision values derived from them.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Market identifies one trading pair on the exchange.
// Symbols use the "ASK_BID" format, e.g. "XPR_XMD": the ask token is the base
// asset being bought or sold, the bid token is the quote currency paid for it.
type Market struct {
	MarketID int64  `json:"market_id"`
	Symbol   string `json:"symbol"`
	AskToken string `json:"ask_token"`
	BidToken string `json:"bid_token"`
}

// ParseSymbol splits a market symbol into its ask (base) and bid (quote) tokens.
func ParseSymbol(symbol string) (askToken, bidToken string, err error) {
	parts := strings.Split(symbol, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid market symbol %q: want BASE_QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}

// Validate checks market field constraints.
func (m *Market) Validate() error {
	if m.MarketID <= 0 {
		return errors.New("market ID must be positive")
	}
	if m.Symbol == "" {
		return errors.New("market symbol must not be empty")
	}
	if m.AskToken == "" || m.BidToken == "" {
		return errors.New("market tokens must not be empty")
	}
	return nil
}

// TokenFor returns the token spent when trading on the given side.
// Buying the base asset spends the quote (bid) token; selling spends the base (ask) token.
func (m *Market) TokenFor(side Side) string {
	if side == SideBuy {
		return m.BidToken
	}
	return m.AskToken
}
