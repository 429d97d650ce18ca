package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Screener results are memoized briefly so repeated UI refreshes don't
	// hammer the upstream API with identical queries.
	TTLScreener = 15 * time.Minute

	// Per-symbol TTM ratios move with daily prices; a few hours is plenty.
	TTLRatios = 6 * time.Hour

	// Bulk snapshots cover the whole provider universe and are expensive
	// upstream, so they are kept a little longer.
	TTLBulkSnapshot = 12 * time.Hour
)
