package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|entry_fill_time_unix_ms)
// A run holds at most one position at a time, so the entry fill time is unique within it.
func ComputeTradeID(runID string, entryFillTime time.Time) string {
	data := fmt.Sprintf("%s|%d", runID, entryFillTime.UnixMilli())

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
