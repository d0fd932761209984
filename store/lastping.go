// Package store keeps each rider's last accepted ping in Redis.
//
// Scoring a ping reads the rider's previous ping, and accepting it replaces
// that record. Two pings from the same rider must never be scored against the
// same previous ping, so replacement is an optimistic compare-and-swap on a
// per-record version: callers read a version alongside the ping and pass it
// back on update, retrying the whole read-score-update cycle on ErrConflict.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ping-integrity-service/cache"
	"ping-integrity-service/scoring"
)

// ErrConflict means another ping for the same rider was accepted between the
// caller's read and its update. The caller should re-read and re-score.
var ErrConflict = errors.New("last ping was replaced concurrently")

// Ping reports whether the backing Redis connection is alive.
func Ping(ctx context.Context) error {
	return cache.RedisClient.Ping(ctx).Err()
}

type record struct {
	Version int64                `json:"version"`
	Ping    scoring.LocationPing `json:"ping"`
}

func lastPingKey(riderID string) string {
	return fmt.Sprintf("rider:lastping:%s", riderID)
}

// LastPing returns the rider's last accepted ping and its record version.
// A rider with no history yields a nil ping and version 0.
func LastPing(ctx context.Context, riderID string) (*scoring.LocationPing, int64, error) {
	raw, err := cache.RedisClient.Get(ctx, lastPingKey(riderID)).Result()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading last ping for rider %s: %w", riderID, err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, 0, fmt.Errorf("decoding last ping for rider %s: %w", riderID, err)
	}
	return &rec.Ping, rec.Version, nil
}

// UpdateLastPing replaces the rider's last accepted ping, but only if the
// stored record still carries expectedVersion. Implemented as a WATCH/MULTI
// transaction so a concurrent writer aborts the commit instead of being
// silently overwritten.
func UpdateLastPing(ctx context.Context, riderID string, ping scoring.LocationPing, expectedVersion int64) error {
	key := lastPingKey(riderID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			if expectedVersion != 0 {
				return ErrConflict
			}
		case err != nil:
			return err
		default:
			var rec record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return fmt.Errorf("decoding last ping for rider %s: %w", riderID, err)
			}
			if rec.Version != expectedVersion {
				return ErrConflict
			}
		}

		next, err := json.Marshal(record{Version: expectedVersion + 1, Ping: ping})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	err := cache.RedisClient.Watch(ctx, txn, key)
	if err == redis.TxFailedErr {
		return ErrConflict
	}
	return err
}
