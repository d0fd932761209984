package models

import "time"

// PingAudit is one row of the per-ping audit trail.
type PingAudit struct {
	ID           int64     `json:"id"`
	RiderID      string    `json:"rider_id"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	TsMs         int64     `json:"ts_ms"`
	Geohash      string    `json:"geohash"`
	FraudScore   int       `json:"fraud_score"`
	FraudSignals []string  `json:"fraud_signals"`
	Action       string    `json:"action"`
	Zones        []string  `json:"zones"`
	CreatedAt    time.Time `json:"created_at"`
}
