package broker

// Position is a signed holding in one symbol: positive quantity is long,
// negative is short. AvgEntry is the running average-cost basis.
type Position struct {
	Symbol   string
	Quantity float64
	AvgEntry float64
}

// PortfolioSnapshot is the read-only view of portfolio state handed to the
// risk evaluator and the recap path. Marks carry the latest known price per
// symbol; Equity is always Cash plus positions valued at those marks, the
// single equity formula used everywhere.
type PortfolioSnapshot struct {
	Cash       float64
	Equity     float64
	RealizedPL float64
	HighWater  float64
	Positions  map[string]Position
	Marks      map[string]float64

	// Orders already approved in the current engine iteration. Risk
	// approvals within an iteration are sequential, so this count lets
	// the evaluator enforce the per-iteration cap.
	ApprovedThisCycle int
}

// PositionQty returns the signed quantity held in symbol, zero if flat.
func (s PortfolioSnapshot) PositionQty(symbol string) float64 {
	return s.Positions[symbol].Quantity
}

// Notional returns the absolute marked value of the position in symbol.
func (s PortfolioSnapshot) Notional(symbol string) float64 {
	p, ok := s.Positions[symbol]
	if !ok {
		return 0
	}
	return abs(p.Quantity) * s.Marks[symbol]
}

// GrossExposure is the sum of absolute position notionals across all
// symbols, at current marks.
func (s PortfolioSnapshot) GrossExposure() float64 {
	var total float64
	for sym := range s.Positions {
		total += s.Notional(sym)
	}
	return total
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
