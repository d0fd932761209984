// Package policy maps a scoring result onto an operational action. The
// scoring engine stays decision-free; this is the downstream consumer that
// decides what happens to the ping.
package policy

import (
	"ping-integrity-service/config"
	"ping-integrity-service/scoring"
)

// Action is what ingestion does with a scored ping.
type Action string

const (
	// ActionAllow accepts the ping silently.
	ActionAllow Action = "allow"
	// ActionFlag accepts the ping but raises it for operations review.
	ActionFlag Action = "flag"
	// ActionSuspend rejects the ping and marks the rider for duty review.
	ActionSuspend Action = "suspend"
)

// Thresholds are the score cut-offs between actions.
type Thresholds struct {
	FlagScore    int
	SuspendScore int
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{FlagScore: 40, SuspendScore: 80}
}

// FromConfig builds thresholds from configuration, falling back to defaults
// for unset values.
func FromConfig(cfg config.PolicyConfig) Thresholds {
	t := DefaultThresholds()
	if cfg.FlagScore > 0 {
		t.FlagScore = cfg.FlagScore
	}
	if cfg.SuspendScore > 0 {
		t.SuspendScore = cfg.SuspendScore
	}
	return t
}

// Decide maps a scoring result to an action. An OS-level mock-provider flag
// always suspends regardless of the aggregate score.
func Decide(res scoring.Result, t Thresholds) Action {
	for _, s := range res.Signals {
		if s == scoring.SignalMockLocation {
			return ActionSuspend
		}
	}

	switch {
	case res.Score >= t.SuspendScore:
		return ActionSuspend
	case res.Score >= t.FlagScore:
		return ActionFlag
	default:
		return ActionAllow
	}
}
