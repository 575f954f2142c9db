package strategies

import (
	"sync"

	"github.com/rustyeddy/papertrader/market"
)

// Step is one pre-planned signal in a scripted sequence.
type Step struct {
	Direction Direction
	Strength  float64
	Stop      float64
	Target    float64
}

// Scripted replays a fixed per-symbol signal sequence, one step per call,
// holding flat once the script runs out. Used in tests and for pinning
// down engine behavior with known inputs.
type Scripted struct {
	mu    sync.Mutex
	steps map[string][]Step
	pos   map[string]int
}

func NewScripted(steps map[string][]Step) *Scripted {
	return &Scripted{steps: steps, pos: make(map[string]int)}
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Signal(snap market.Snapshot) (Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := Signal{Symbol: snap.Symbol, Direction: Flat, Strategy: s.Name()}
	seq := s.steps[snap.Symbol]
	i := s.pos[snap.Symbol]
	if i < len(seq) {
		sig.Direction = seq[i].Direction
		sig.Strength = seq[i].Strength
		sig.Stop = seq[i].Stop
		sig.Target = seq[i].Target
		s.pos[snap.Symbol] = i + 1
	}
	return sig, nil
}
