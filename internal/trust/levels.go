// Package trust implements the per-user trust ladder: booking
// eligibility, no-show penalties, promotion on successful bookings, and
// strike accrual, redemption, and expiry.
package trust

import "time"

// Level is the tiered booking privilege. It only increases through
// ProcessBookingCompletion and only decreases through ReportNoShow.
type Level int64

const (
	Unverified  Level = 0
	Verified    Level = 1
	Trusted     Level = 2
	Established Level = 3
)

func (l Level) String() string {
	switch l {
	case Unverified:
		return "unverified"
	case Verified:
		return "verified"
	case Trusted:
		return "trusted"
	case Established:
		return "established"
	default:
		return "unknown"
	}
}

// WeeklyQuota is the tier table for weekly booking limits. Demotions may
// override the stored limit with a direct assignment instead of this
// lookup.
func WeeklyQuota(l Level) int64 {
	switch l {
	case Unverified:
		return 0
	case Verified:
		return 1
	case Trusted:
		return 3
	case Established:
		return 5
	default:
		return 0
	}
}

const (
	// Promotion thresholds are absolute successful-booking counts.
	trustedThreshold     = 1
	establishedThreshold = 3

	// Every redemptionInterval successful bookings redeems one active
	// strike.
	redemptionInterval = 5

	reportWindow       = 24 * time.Hour
	banDuration        = 7 * 24 * time.Hour
	strikeLookback     = 30 * 24 * time.Hour
	strikeExpiryAge    = 60 * 24 * time.Hour
	demotedWeeklyLimit = 1
	warnedWeeklyLimit  = 3
)
