// Package ingress holds the boundary request types an external
// parser/decoder hands to the engine, plus their struct-tag validation.
// Nothing in this package parses the CSV or binary wire formats
// themselves — that remains an external collaborator's job; this is the
// validated shape on the other side of that boundary.
package ingress

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tembolo1284/matching-engine-c-sub001/internal/matching"
)

var validate = validator.New()

// NewOrderRequest is the validated shape of a NewOrder input: quantity
// must be positive, side must be BUY or SELL, and symbol must be
// non-empty and within the engine's symbol-length limit.
type NewOrderRequest struct {
	UserID      uint32 `validate:"required"`
	UserOrderID uint32 `validate:"required"`
	Symbol      string `validate:"required,max=256"`
	Price       uint32 // 0 is a valid, meaningful value (market order)
	Quantity    uint32 `validate:"required,gt=0"`
	Side        string `validate:"required,oneof=B S"`
}

// CancelRequest is the validated shape of a Cancel input. Symbol is
// deliberately absent: a cancel carries only the order key.
type CancelRequest struct {
	UserID      uint32 `validate:"required"`
	UserOrderID uint32 `validate:"required"`
}

// Validate runs struct-tag validation and returns a wrapped error
// listing every violated constraint.
func (r NewOrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("ingress: invalid NewOrderRequest: %w", err)
	}
	if len(r.Symbol) > matching.SMax {
		return fmt.Errorf("ingress: symbol %q exceeds S_MAX (%d) bytes", r.Symbol, matching.SMax)
	}
	return nil
}

func (r CancelRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("ingress: invalid CancelRequest: %w", err)
	}
	return nil
}

// ToInputMessage converts a validated NewOrderRequest into the core's
// InputMessage shape. Callers must call Validate first; this performs no
// validation of its own.
func (r NewOrderRequest) ToInputMessage() matching.InputMessage {
	side := matching.Buy
	if r.Side == "S" {
		side = matching.Sell
	}
	return matching.InputMessage{
		Kind:        matching.NewOrderInput,
		UserID:      r.UserID,
		UserOrderID: r.UserOrderID,
		Symbol:      matching.Symbol(r.Symbol),
		Price:       matching.Price(r.Price),
		Quantity:    matching.Quantity(r.Quantity),
		Side:        side,
	}
}

func (r CancelRequest) ToInputMessage() matching.InputMessage {
	return matching.InputMessage{
		Kind:        matching.CancelInput,
		UserID:      r.UserID,
		UserOrderID: r.UserOrderID,
	}
}
