package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/dexrisk/internal/logger"
	"github.com/rewired-gh/dexrisk/internal/models"
)

// OrderSubmitter places limit orders on the exchange. Success is synchronous;
// partial fills are not modelled here. A refusal by the venue is reported with an
// error implementing Rejected() bool; anything else is a transport failure.
type OrderSubmitter interface {
	SubmitLimitOrder(ctx context.Context, symbol string, side models.Side, quantity, price decimal.Decimal) error
}

type rejection interface {
	Rejected() bool
}

// OrderRejectedError reports that the exchange refused a submission.
type OrderRejectedError struct {
	Symbol string
	Intent models.OrderIntent
	Err    error
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order %s on %s rejected: %v", e.Intent, e.Symbol, e.Err)
}

func (e *OrderRejectedError) Unwrap() error {
	return e.Err
}

// Executor turns an order intent into a single submission call.
type Executor struct {
	submitter OrderSubmitter
}

func NewExecutor(submitter OrderSubmitter) *Executor {
	return &Executor{submitter: submitter}
}

// Submit sends the intent once. There is no resubmission on failure. Only venue
// refusals become *OrderRejectedError; transport errors are wrapped as they are.
func (x *Executor) Submit(ctx context.Context, symbol string, intent models.OrderIntent) error {
	if !intent.Quantity.IsPositive() || !intent.Price.IsPositive() {
		return fmt.Errorf("refusing to submit %s: quantity and price must be positive", intent)
	}
	err := x.submitter.SubmitLimitOrder(ctx, symbol, intent.Side, intent.Quantity, intent.Price)
	if err == nil {
		return nil
	}
	var r rejection
	if errors.As(err, &r) && r.Rejected() {
		return &OrderRejectedError{Symbol: symbol, Intent: intent, Err: err}
	}
	return fmt.Errorf("failed to submit order %s on %s: %w", intent, symbol, err)
}

// DryRunSubmitter only logs orders. Used for paper trading.
type DryRunSubmitter struct{}

func (DryRunSubmitter) SubmitLimitOrder(ctx context.Context, symbol string, side models.Side, quantity, price decimal.Decimal) error {
	logger.Info("DRY RUN: %s limit order of %s %s at %s", side, quantity, symbol, price)
	return nil
}
