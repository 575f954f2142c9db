package engine

import (
	"errors"
	"fmt"
)

// ErrLiveDisabled is the hard stop raised when configuration claims live
// trading without separately validated credentials. It fires at
// construction time, before any order could exist.
var ErrLiveDisabled = errors.New("live trading requested without validated credentials")

// LiveCredentials is the capability required to even construct a live
// mode. It is loaded from the environment, never from the config file.
type LiveCredentials struct {
	APIKey    string
	APISecret string
}

func (c LiveCredentials) Validate() error {
	if c.APIKey == "" || c.APISecret == "" {
		return errors.New("live credentials require both api key and secret")
	}
	return nil
}

type modeKind int

const (
	modePaper modeKind = iota
	modeBacktest
	modeLive
)

// Mode is a closed type: Paper and Backtest are freely constructible,
// Live only through NewLiveMode with credentials that validate. A zero
// Mode is paper, so misconfiguration fails safe.
type Mode struct {
	kind  modeKind
	creds LiveCredentials
}

func Paper() Mode    { return Mode{kind: modePaper} }
func Backtest() Mode { return Mode{kind: modeBacktest} }

func NewLiveMode(creds LiveCredentials) (Mode, error) {
	if err := creds.Validate(); err != nil {
		return Mode{}, fmt.Errorf("%w: %v", ErrLiveDisabled, err)
	}
	return Mode{kind: modeLive, creds: creds}, nil
}

func (m Mode) Live() bool     { return m.kind == modeLive }
func (m Mode) Backtest() bool { return m.kind == modeBacktest }

func (m Mode) String() string {
	switch m.kind {
	case modeLive:
		return "live"
	case modeBacktest:
		return "backtest"
	default:
		return "paper"
	}
}
