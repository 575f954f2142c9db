// Package broker defines the order/fill model shared by the engine, the
// risk layer and the simulated broker, plus the Broker interface itself.
package broker

import (
	"context"
	"fmt"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// SignedQty applies the side's sign to a (positive) quantity.
func (s Side) SignedQty(qty float64) float64 {
	if s == Sell {
		return -qty
	}
	return qty
}

type Status int

const (
	Pending Status = iota
	Filled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Filled:
		return "filled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Order is created by the engine and consumed by a broker. It starts
// Pending and transitions to exactly one terminal state; terminal orders
// are never mutated again.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64 // requested reference price (last close)
	Time      time.Time
	Status    Status
	SignalRef string // originating strategy name
}

// Fill is the record of an executed order. Price is the requested price
// adjusted by slippage, Time the requested time plus modeled latency.
// Slippage is the adverse per-unit price deviation.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Fee        float64
	Slippage   float64
	RealizedPL float64
	Time       time.Time
}

type RejectReason string

const (
	ReasonInsufficientFunds RejectReason = "InsufficientFunds"
	ReasonLimitExceeded     RejectReason = "LimitExceeded"
	ReasonShortDisabled     RejectReason = "ShortDisabled"
	ReasonZeroQuantity      RejectReason = "ZeroQuantity"
	ReasonFeedUnavailable   RejectReason = "FeedUnavailable"
)

// RejectError is an expected control-flow outcome, not a failure: a
// rejected order still produces a ledger entry.
type RejectError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Broker executes orders. Submit returns a RejectError when the order is
// rejected; any other error is a genuine fault.
type Broker interface {
	Submit(ctx context.Context, order Order) (Fill, error)
}
