package risk

// Limits is immutable configuration for the risk evaluator. It is loaded
// once at startup, referenced everywhere, never copied-and-mutated.
type Limits struct {
	// MaxPositionNotional caps the absolute marked value of a single
	// symbol's position after the proposed fill.
	MaxPositionNotional float64

	// MaxGrossExposure caps the sum of absolute position notionals
	// across all symbols after the proposed fill.
	MaxGrossExposure float64

	// MaxDrawdownPct blocks new risk once equity has fallen this
	// fraction below its running high-water mark. 0.10 = 10%.
	MaxDrawdownPct float64

	// MaxOrdersPerCycle caps approvals within one engine iteration,
	// guarding against runaway signal generation.
	MaxOrdersPerCycle int

	// AllowShort permits sells that take a position below zero.
	AllowShort bool

	// AllowReduce lets the evaluator shrink an oversized order to the
	// largest permissible quantity instead of rejecting outright.
	AllowReduce bool

	// MinQuantity is the smallest tradable unit; reduced quantities
	// below it are rejected rather than approved.
	MinQuantity float64
}
