// Package journal persists the trade ledger: every fill and every
// rejection, in insertion order, plus equity marks taken after each fill.
// The ledger is the source of truth for recap metrics.
package journal

import (
	"time"

	"github.com/rustyeddy/papertrader/broker"
)

type EntryKind string

const (
	KindFill      EntryKind = "fill"
	KindRejection EntryKind = "rejection"
)

// Entry is one ledger row. Fill entries carry price/fee/slippage/realized
// PnL; rejection entries carry the reason instead. Seq is assigned by the
// ledger owner and is strictly increasing.
type Entry struct {
	Seq        int
	Kind       EntryKind
	OrderID    string
	Symbol     string
	Side       broker.Side
	Quantity   float64
	Price      float64
	Fee        float64
	Slippage   float64
	RealizedPL float64
	Reason     broker.RejectReason
	Detail     string
	Time       time.Time
}

// SignedQty is the position delta this entry caused: buys positive, sells
// negative, rejections zero. The sum over any ledger prefix equals the
// position quantity at that point (conservation).
func (e Entry) SignedQty() float64 {
	if e.Kind != KindFill {
		return 0
	}
	return e.Side.SignedQty(e.Quantity)
}

// EquityMark is a point on the equity curve, recorded after each fill.
type EquityMark struct {
	Time       time.Time
	Cash       float64
	Equity     float64
	RealizedPL float64
}

type Journal interface {
	RecordEntry(Entry) error
	RecordEquity(EquityMark) error
	Close() error
}

// Memory keeps everything in slices. Used by tests and as the default
// journal when no persistence is configured.
type Memory struct {
	Entries []Entry
	Marks   []EquityMark
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordEntry(e Entry) error {
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *Memory) RecordEquity(mark EquityMark) error {
	m.Marks = append(m.Marks, mark)
	return nil
}

func (m *Memory) Close() error { return nil }
