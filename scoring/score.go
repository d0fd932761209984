// Package scoring implements the location integrity engine: given a rider's
// current GPS ping and optionally the previously accepted one, it derives
// movement kinematics and emits a bounded fraud score plus the list of
// anomaly signals that fired.
//
// The engine is pure: it performs no I/O, holds no state and never mutates
// its input, so it is safe to call concurrently from any number of request
// handlers. The per-rider "last accepted ping" state belongs to the caller's
// store, which must serialize score computations per rider.
package scoring

// Signal is a named anomaly condition contributing to the fraud score.
type Signal string

const (
	SignalMockLocation     Signal = "MOCK_LOCATION"
	SignalGPSDisabled      Signal = "GPS_DISABLED"
	SignalLowAccuracy      Signal = "LOW_ACCURACY"
	SignalTeleport         Signal = "TELEPORT"
	SignalUnrealisticSpeed Signal = "UNREALISTIC_SPEED"
	SignalHeadingMismatch  Signal = "HEADING_MISMATCH"
	SignalDeviceIDMismatch Signal = "DEVICE_ID_MISMATCH"
)

// LocationPing is one GPS observation reported by a rider's device.
// Optional fields are nil when the device did not report them.
type LocationPing struct {
	GeoPoint
	TsMs       int64    `json:"ts_ms"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
	SpeedMps   *float64 `json:"speed_mps,omitempty"`
	HeadingDeg *float64 `json:"heading_deg,omitempty"`
	Mocked     *bool    `json:"mocked,omitempty"`
}

// Context is the engine's sole input. Prev is the rider's most recent
// previously accepted ping, or nil on the first observation of a session.
// Coordinates must already be validated by the ingestion boundary; the
// engine does not re-check them.
type Context struct {
	Prev          *LocationPing
	Curr          LocationPing
	TokenDeviceID *string
	BodyDeviceID  *string
	GPSEnabled    *bool
}

// Result is the engine's output: every signal that fired in detection order,
// the clamped severity, and the diagnostics computed along the way. A meta
// key is absent when the check that produces it did not run.
type Result struct {
	Signals []Signal           `json:"fraud_signals"`
	Score   int                `json:"fraud_score"`
	Meta    map[string]float64 `json:"meta"`
}

// Thresholds holds the tunable constants of every check. Zero values are not
// meaningful; start from DefaultThresholds.
type Thresholds struct {
	LowAccuracyM    float64 // accuracy radius above which a fix is untrustworthy
	TeleportDistM   float64 // distance that cannot be covered within the window
	TeleportWindowS float64 // window for the teleport check, seconds
	MaxSpeedMps     float64 // derived speed cap, ~162 km/h
	MovingSpeedMps  float64 // below this the heading comparison is meaningless
	HeadingSlackDeg float64 // allowed divergence between heading and bearing

	WeightGPSDisabled      int
	WeightMockLocation     int
	WeightLowAccuracy      int
	WeightDeviceIDMismatch int
	WeightTeleport         int
	WeightUnrealisticSpeed int
	WeightHeadingMismatch  int
}

// DefaultThresholds returns the production defaults. Downstream consumers
// depend on these exact values; tune via config, not by editing checks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowAccuracyM:    60,
		TeleportDistM:   250,
		TeleportWindowS: 5,
		MaxSpeedMps:     45,
		MovingSpeedMps:  2,
		HeadingSlackDeg: 75,

		WeightGPSDisabled:      30,
		WeightMockLocation:     80,
		WeightLowAccuracy:      15,
		WeightDeviceIDMismatch: 40,
		WeightTeleport:         70,
		WeightUnrealisticSpeed: 50,
		WeightHeadingMismatch:  10,
	}
}

// Engine evaluates pings against a fixed set of thresholds.
type Engine struct {
	T Thresholds
}

// NewEngine returns an engine with the given thresholds.
func NewEngine(t Thresholds) Engine { return Engine{T: t} }

// ScorePing evaluates a ping with the default thresholds.
func ScorePing(ctx Context) Result {
	return Engine{T: DefaultThresholds()}.Score(ctx)
}

// Score runs every check in a fixed order and aggregates the fired weights
// into a score clamped to [0, 100]. The order determines the order of
// entries in Result.Signals and must not change: downstream consumers and
// the audit trail depend on it. Checks are independent; a later check never
// suppresses an earlier one, and multiple severe signals may overshoot 100
// before the final clamp.
func (e Engine) Score(ctx Context) Result {
	res := Result{
		Signals: []Signal{},
		Meta:    map[string]float64{},
	}
	total := 0

	if ctx.GPSEnabled != nil && !*ctx.GPSEnabled {
		res.Signals = append(res.Signals, SignalGPSDisabled)
		total += e.T.WeightGPSDisabled
	}

	if ctx.Curr.Mocked != nil && *ctx.Curr.Mocked {
		res.Signals = append(res.Signals, SignalMockLocation)
		total += e.T.WeightMockLocation
	}

	if ctx.Curr.AccuracyM != nil {
		res.Meta["accuracyM"] = *ctx.Curr.AccuracyM
		if *ctx.Curr.AccuracyM > e.T.LowAccuracyM {
			res.Signals = append(res.Signals, SignalLowAccuracy)
			total += e.T.WeightLowAccuracy
		}
	}

	if ctx.TokenDeviceID != nil && ctx.BodyDeviceID != nil && *ctx.TokenDeviceID != *ctx.BodyDeviceID {
		res.Signals = append(res.Signals, SignalDeviceIDMismatch)
		total += e.T.WeightDeviceIDMismatch
	}

	// The remaining checks need velocity information, which does not exist
	// for the first ping of a session.
	if ctx.Prev != nil {
		k := deriveKinematics(*ctx.Prev, ctx.Curr)
		res.Meta["dtSec"] = k.dtSec
		res.Meta["distM"] = k.distM
		res.Meta["derivedSpeedMps"] = k.speedMps

		if k.distM > e.T.TeleportDistM && k.dtSec < e.T.TeleportWindowS {
			res.Signals = append(res.Signals, SignalTeleport)
			total += e.T.WeightTeleport
		}

		if k.speedMps > e.T.MaxSpeedMps {
			res.Signals = append(res.Signals, SignalUnrealisticSpeed)
			total += e.T.WeightUnrealisticSpeed
		}

		if ctx.Curr.HeadingDeg != nil && k.speedMps > e.T.MovingSpeedMps {
			brng := BearingDeg(ctx.Prev.GeoPoint, ctx.Curr.GeoPoint)
			diff := AngularDiffDeg(*ctx.Curr.HeadingDeg, brng)
			res.Meta["bearingDeg"] = brng
			res.Meta["headingDiffDeg"] = diff
			if diff > e.T.HeadingSlackDeg {
				res.Signals = append(res.Signals, SignalHeadingMismatch)
				total += e.T.WeightHeadingMismatch
			}
		}
	}

	res.Score = clamp(total, 0, 100)
	return res
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
