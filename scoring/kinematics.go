package scoring

// minDtSec floors the elapsed time between two pings. Identical or reversed
// timestamps become a tiny positive interval instead of a division by zero,
// which the speed checks then flag as an enormous derived speed.
const minDtSec = 0.001

// kinematics holds the movement quantities derived from two consecutive pings.
type kinematics struct {
	dtSec    float64
	distM    float64
	speedMps float64
}

// deriveKinematics computes elapsed time, distance travelled and average speed
// between the previous and current ping. Derived speed is authoritative for
// anomaly checks; the device-reported speed is attacker-controllable and ignored.
func deriveKinematics(prev, curr LocationPing) kinematics {
	dtSec := float64(curr.TsMs-prev.TsMs) / 1000
	if dtSec < minDtSec {
		dtSec = minDtSec
	}

	distM := DistanceMeters(prev.GeoPoint, curr.GeoPoint)

	return kinematics{
		dtSec:    dtSec,
		distM:    distM,
		speedMps: distM / dtSec,
	}
}
