// Package retention computes record expiry from a named retention policy.
package retention

import (
	"fmt"
	"time"

	"github.com/careloop/visit-media-service/internal/types"
)

// Durations are fixed-day arithmetic, not calendar years. A "1_year" policy
// is exactly 365 days regardless of leap years; "7_years" is 7*365 days.
// Existing stored expiry timestamps depend on this, so it must not change.
const day = 24 * time.Hour

// ResolveExpiration returns the absolute expiry timestamp for a record
// created at createdAt under the given policy, or nil for permanent
// retention. It is computed once, at record creation, and never again.
func ResolveExpiration(policy types.RetentionPolicy, createdAt time.Time) (*time.Time, error) {
	var d time.Duration

	switch policy {
	case types.Retention7Days:
		d = 7 * day
	case types.Retention30Days:
		d = 30 * day
	case types.Retention1Year:
		d = 365 * day
	case types.Retention7Years:
		d = 7 * 365 * day
	case types.RetentionPermanent:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown retention policy: %q", policy)
	}

	expires := createdAt.Add(d)
	return &expires, nil
}
