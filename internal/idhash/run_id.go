// Package idhash computes deterministic identifiers for runs and trades.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"crossover-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(instrument|start|end|bar_count|fast|slow|ma_kind|sizing|units|starting_cash|commission_rate)
// Times are RFC3339 in UTC; decimals use their canonical string form.
// Returns hex-encoded hash (64 characters).
func ComputeRunID(instrument string, start, end time.Time, barCount int, cfg domain.RunConfig) string {
	kind := cfg.MAKind
	if kind == "" {
		kind = domain.MAKindSMA
	}
	policy := cfg.Sizing.Policy
	if policy == "" {
		policy = domain.SizingAllCash
	}

	data := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%s|%s|%d|%s|%s",
		instrument,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		barCount,
		cfg.FastWindow,
		cfg.SlowWindow,
		kind,
		policy,
		cfg.Sizing.Units,
		cfg.StartingCash.String(),
		cfg.CommissionRate.String(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
