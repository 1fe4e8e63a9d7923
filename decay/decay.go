// Package decay implements the linear freshness/TTL model shared by
// neighbors, routes, and link stats: freshness decays linearly from 1.0
// at lastUpdated to 0.0 at lastUpdated+TTL, and is pinned to 1.0 for
// timestamps in the future (clock skew).
package decay

import (
	"fmt"
	"math"
	"time"
)

// Default TTLs per spec §4.7.
const (
	DefaultNeighborTTL    = 15 * time.Minute
	DefaultRouteTTL       = 15 * time.Minute
	DefaultLinkStatTTL    = 15 * time.Minute
	DefaultGlobalStaleTTL = time.Hour
)

// Freshness returns a value in [0,1]: 1.0 if t is in the future relative
// to now, otherwise linear decay to 0 at t+ttl.
func Freshness(t time.Time, ttl time.Duration, now time.Time) float64 {
	if t.After(now) {
		return 1.0
	}
	if ttl <= 0 {
		return 0
	}
	elapsed := now.Sub(t)
	f := 1 - float64(elapsed)/float64(ttl)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Decay255 maps freshness onto the 0..255 display range used by
// Neighbor/Route/LinkStat quality decay.
func Decay255(t time.Time, ttl time.Duration, now time.Time) int {
	return int(math.Round(255 * Freshness(t, ttl, now)))
}

// DisplayString renders freshness as "<floor(100*freshness)>%".
func DisplayString(t time.Time, ttl time.Duration, now time.Time) string {
	pct := math.Floor(100 * Freshness(t, ttl, now))
	return fmt.Sprintf("%d%%", int(pct))
}

// IsStale reports whether t is older than globalStaleTTL, independent of
// the entity's own TTL; used for display-hiding when hideExpiredRoutes
// is configured.
func IsStale(t time.Time, globalStaleTTL time.Duration, now time.Time) bool {
	if t.After(now) {
		return false
	}
	return now.Sub(t) > globalStaleTTL
}
