package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog/log"

	"ping-integrity-service/database"
	"ping-integrity-service/geofence"
	"ping-integrity-service/models"
	"ping-integrity-service/policy"
	"ping-integrity-service/scoring"
	"ping-integrity-service/store"
)

// geohashPrecision groups audit rows into ~150m cells.
const geohashPrecision = 7

// scoreAttempts bounds the read-score-update retry loop on CAS conflicts.
const scoreAttempts = 3

var (
	engine           scoring.Engine
	zones            *geofence.Index
	policyThresholds policy.Thresholds
)

// Setup wires the handlers' collaborators. Must be called before RegisterRoutes.
func Setup(e scoring.Engine, z *geofence.Index, t policy.Thresholds) {
	engine = e
	zones = z
	policyThresholds = t
}

type pingRequest struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	TsMs       *int64   `json:"ts_ms"`
	AccuracyM  *float64 `json:"accuracy_m"`
	SpeedMps   *float64 `json:"speed_mps"`
	HeadingDeg *float64 `json:"heading_deg"`
	Mocked     *bool    `json:"mocked"`
	DeviceID   *string  `json:"device_id"`
	GPSEnabled *bool    `json:"gps_enabled"`
}

type pingResponse struct {
	Accepted     bool               `json:"accepted"`
	Action       policy.Action      `json:"action"`
	FraudScore   int                `json:"fraud_score"`
	FraudSignals []scoring.Signal   `json:"fraud_signals"`
	Meta         map[string]float64 `json:"meta"`
	Zones        []string           `json:"zones"`
}

// tokenDeviceID extracts the device identifier bound to the caller's
// credential. Tokens are "<deviceID>:<secret>" in the X-Device-Token header.
func tokenDeviceID(r *http.Request) (string, bool) {
	token := r.Header.Get("X-Device-Token")
	if token == "" {
		return "", false
	}
	deviceID, _, found := strings.Cut(token, ":")
	if !found || deviceID == "" {
		return "", false
	}
	return deviceID, true
}

// validatePing enforces the ingestion contract: the scoring engine must never
// see non-finite or out-of-range coordinates.
func validatePing(req pingRequest) error {
	if req.Latitude == nil || req.Longitude == nil || req.TsMs == nil {
		return errors.New("latitude, longitude and ts_ms are required")
	}
	lat, lng := *req.Latitude, *req.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return errors.New("coordinates must be finite")
	}
	if lat < -90 || lat > 90 {
		return errors.New("latitude out of range")
	}
	if lng < -180 || lng > 180 {
		return errors.New("longitude out of range")
	}
	if *req.TsMs <= 0 {
		return errors.New("ts_ms must be positive")
	}
	return nil
}

// SubmitPing scores an incoming ping against the rider's last accepted ping,
// applies policy, persists state and writes the audit row.
func SubmitPing(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]

	tokenID, ok := tokenDeviceID(r)
	if !ok {
		http.Error(w, "Missing or malformed device token", http.StatusUnauthorized)
		return
	}

	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validatePing(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ping := scoring.LocationPing{
		GeoPoint:   scoring.GeoPoint{Lat: *req.Latitude, Lng: *req.Longitude},
		TsMs:       *req.TsMs,
		AccuracyM:  req.AccuracyM,
		SpeedMps:   req.SpeedMps,
		HeadingDeg: req.HeadingDeg,
		Mocked:     req.Mocked,
	}

	ctx := r.Context()

	// Read, score and conditionally replace the last accepted ping. A CAS
	// conflict means another ping for this rider landed in between; rescore
	// against the fresh state so both are judged against real history.
	var result scoring.Result
	var action policy.Action
	accepted := false
	for attempt := 0; attempt < scoreAttempts; attempt++ {
		prev, version, err := store.LastPing(ctx, riderID)
		if err != nil {
			log.Error().Err(err).Str("rider_id", riderID).Msg("Failed to load last ping")
			http.Error(w, "Failed to load rider state", http.StatusInternalServerError)
			return
		}

		result = engine.Score(scoring.Context{
			Prev:          prev,
			Curr:          ping,
			TokenDeviceID: &tokenID,
			BodyDeviceID:  req.DeviceID,
			GPSEnabled:    req.GPSEnabled,
		})
		action = policy.Decide(result, policyThresholds)

		if action == policy.ActionSuspend {
			// Rejected pings never become the rider's history.
			break
		}

		err = store.UpdateLastPing(ctx, riderID, ping, version)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("rider_id", riderID).Msg("Failed to store last ping")
			http.Error(w, "Failed to store rider state", http.StatusInternalServerError)
			return
		}
		accepted = true
		break
	}
	if action != policy.ActionSuspend && !accepted {
		http.Error(w, "Too much contention for rider state", http.StatusConflict)
		return
	}

	zoneNames := zones.Containing(ping.Lat, ping.Lng)

	writeAudit(ctx, riderID, ping, result, action, zoneNames)

	log.Info().
		Str("rider_id", riderID).
		Int("fraud_score", result.Score).
		Str("action", string(action)).
		Interface("signals", result.Signals).
		Msg("Ping scored")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pingResponse{
		Accepted:     accepted,
		Action:       action,
		FraudScore:   result.Score,
		FraudSignals: result.Signals,
		Meta:         result.Meta,
		Zones:        zoneNames,
	})
}

// writeAudit appends the scored ping to the Postgres audit trail. Audit
// failures are logged, not surfaced: the scoring decision already happened.
func writeAudit(ctx context.Context, riderID string, ping scoring.LocationPing, result scoring.Result, action policy.Action, zoneNames []string) {
	signals := make([]string, len(result.Signals))
	for i, s := range result.Signals {
		signals[i] = string(s)
	}

	_, err := database.DB.ExecContext(ctx,
		`INSERT INTO ping_audit (rider_id, lat, lng, ts_ms, geohash, fraud_score, fraud_signals, action, zones)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		riderID, ping.Lat, ping.Lng, ping.TsMs,
		geohash.EncodeWithPrecision(ping.Lat, ping.Lng, geohashPrecision),
		result.Score, pq.Array(signals), string(action), pq.Array(zoneNames),
	)
	if err != nil {
		log.Error().Err(err).Str("rider_id", riderID).Msg("Failed to write audit row")
	}
}

// GetLastPing returns the rider's last accepted ping.
func GetLastPing(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]

	ping, _, err := store.LastPing(r.Context(), riderID)
	if err != nil {
		http.Error(w, "Failed to load rider state", http.StatusInternalServerError)
		return
	}
	if ping == nil {
		http.Error(w, "No pings recorded for rider", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ping)
}

// GetAuditTrail returns the rider's most recent audit rows.
func GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]

	rows, err := database.DB.QueryContext(r.Context(),
		`SELECT id, rider_id, lat, lng, ts_ms, geohash, fraud_score, fraud_signals, action, zones, created_at
         FROM ping_audit WHERE rider_id=$1 ORDER BY created_at DESC LIMIT 100`,
		riderID,
	)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	audits := []models.PingAudit{}
	for rows.Next() {
		var a models.PingAudit
		err := rows.Scan(
			&a.ID, &a.RiderID, &a.Lat, &a.Lng, &a.TsMs, &a.Geohash,
			&a.FraudScore, pq.Array(&a.FraudSignals), &a.Action, pq.Array(&a.Zones), &a.CreatedAt,
		)
		if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(audits)
}

// DistanceHandler computes the great-circle distance and initial bearing
// between two points.
func DistanceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From scoring.GeoPoint `json:"from"`
		To   scoring.GeoPoint `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	for _, p := range []scoring.GeoPoint{req.From, req.To} {
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 ||
			math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
			http.Error(w, "Coordinates out of range", http.StatusBadRequest)
			return
		}
	}

	response := map[string]float64{
		"distance_m":  scoring.DistanceMeters(req.From, req.To),
		"bearing_deg": scoring.BearingDeg(req.From, req.To),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetZones returns the configured geofence zones.
func GetZones(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(zones.Zones())
}

// HealthCheck reports liveness of the service and its stores.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := database.DB.PingContext(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("database unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	if err := store.Ping(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
