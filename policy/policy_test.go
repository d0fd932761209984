package policy

import (
	"testing"

	"ping-integrity-service/config"
	"ping-integrity-service/scoring"
)

func TestDecideByScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  Action
	}{
		{"clean", 0, ActionAllow},
		{"below flag", 39, ActionAllow},
		{"at flag", 40, ActionFlag},
		{"between", 70, ActionFlag},
		{"at suspend", 80, ActionSuspend},
		{"maximum", 100, ActionSuspend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scoring.Result{Score: tt.score}
			if got := Decide(res, DefaultThresholds()); got != tt.want {
				t.Errorf("Decide(score=%d) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}

func TestDecideMockLocationAlwaysSuspends(t *testing.T) {
	// Even if tuned thresholds would otherwise allow the score through.
	res := scoring.Result{
		Score:   10,
		Signals: []scoring.Signal{scoring.SignalMockLocation},
	}
	thresholds := Thresholds{FlagScore: 90, SuspendScore: 95}

	if got := Decide(res, thresholds); got != ActionSuspend {
		t.Errorf("Decide with MOCK_LOCATION = %s, want suspend", got)
	}
}

func TestFromConfig(t *testing.T) {
	got := FromConfig(config.PolicyConfig{FlagScore: 25, SuspendScore: 60})
	if got.FlagScore != 25 || got.SuspendScore != 60 {
		t.Errorf("FromConfig = %+v, want {25 60}", got)
	}

	// Unset values fall back to defaults.
	got = FromConfig(config.PolicyConfig{})
	want := DefaultThresholds()
	if got != want {
		t.Errorf("FromConfig(zero) = %+v, want %+v", got, want)
	}
}
