// internal/trust/machine.go
package trust

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/audit"
	"github.com/rallyworks/courtguard/internal/authz"
	"github.com/rallyworks/courtguard/internal/db"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrNoBookingUser         = errors.New("booking has no associated user")
	ErrDuplicateReport       = errors.New("a no-show report already exists for this booking")
	ErrReportWindowExpired   = errors.New("the 24-hour reporting window has expired")
	ErrSlotNotEnded          = errors.New("the booking slot has not ended yet")
	ErrNotOrganizationMember = errors.New("reporter is not a member of the facility's organization")
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Machine struct {
	database *db.DB
	recorder *audit.Recorder
	clock    Clock
}

func NewMachine(database *db.DB, recorder *audit.Recorder, clock Clock) *Machine {
	if clock == nil {
		clock = realClock{}
	}
	return &Machine{database: database, recorder: recorder, clock: clock}
}

type Eligibility struct {
	CanBook bool   `json:"can_book"`
	Reason  string `json:"reason,omitempty"`
}

// CanUserBook evaluates the eligibility gate in fixed order: hard ban,
// active booking ban, unverified email, weekly quota. The first failing
// check wins.
func (m *Machine) CanUserBook(ctx context.Context, userID int64) (Eligibility, error) {
	q := m.database.Q()
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Eligibility{}, ErrUserNotFound
		}
		return Eligibility{}, fmt.Errorf("loading user: %w", err)
	}

	now := m.clock.Now()

	if user.Banned {
		return Eligibility{CanBook: false, Reason: "account is suspended"}, nil
	}
	if user.BookingBanUntil.Valid && user.BookingBanUntil.Time.After(now) {
		return Eligibility{
			CanBook: false,
			Reason:  fmt.Sprintf("booking ban active until %s", user.BookingBanUntil.Time.UTC().Format(time.RFC3339)),
		}, nil
	}
	if !user.EmailVerified {
		return Eligibility{CanBook: false, Reason: "email address is not verified"}, nil
	}

	weekStart := startOfWeek(now)
	count, err := q.CountWeeklyBookings(ctx, userID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return Eligibility{}, fmt.Errorf("counting weekly bookings: %w", err)
	}
	if count >= user.WeeklyBookingLimit {
		return Eligibility{
			CanBook: false,
			Reason:  fmt.Sprintf("weekly booking limit of %d reached", user.WeeklyBookingLimit),
		}, nil
	}

	return Eligibility{CanBook: true}, nil
}

// startOfWeek returns Sunday 00:00 in now's location.
func startOfWeek(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(now.Weekday()))
}

type PenaltyResult struct {
	UserID            int64      `json:"user_id"`
	Action            string     `json:"action"`
	TrustLevel        Level      `json:"trust_level"`
	WeeklyLimit       int64      `json:"weekly_limit"`
	ActiveStrikes     int64      `json:"active_strikes"`
	BanUntil          *time.Time `json:"ban_until,omitempty"`
	CancelledBookings int64      `json:"cancelled_bookings"`
}

// ReportNoShow files a no-show report against a booking and applies the
// trust penalty for the offender's current level. Report creation, user
// mutation, and dependent cancellations commit as one transaction.
func (m *Machine) ReportNoShow(ctx context.Context, bookingID, reporterID int64, reason string) (PenaltyResult, error) {
	q := m.database.Q()
	now := m.clock.Now()

	booking, err := q.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PenaltyResult{}, ErrBookingNotFound
		}
		return PenaltyResult{}, fmt.Errorf("loading booking: %w", err)
	}

	if _, err := q.GetReportByBookingID(ctx, bookingID); err == nil {
		return PenaltyResult{}, ErrDuplicateReport
	} else if !errors.Is(err, sql.ErrNoRows) {
		return PenaltyResult{}, fmt.Errorf("checking existing report: %w", err)
	}

	if now.After(booking.EndTime.Add(reportWindow)) {
		return PenaltyResult{}, ErrReportWindowExpired
	}
	if now.Before(booking.EndTime) {
		return PenaltyResult{}, ErrSlotNotEnded
	}

	facility, err := q.GetFacilityByID(ctx, booking.FacilityID)
	if err != nil {
		return PenaltyResult{}, fmt.Errorf("loading facility: %w", err)
	}
	member, err := authz.IsOrganizationMember(ctx, q, reporterID, facility.OrganizationID)
	if err != nil {
		return PenaltyResult{}, fmt.Errorf("checking reporter membership: %w", err)
	}
	if !member {
		return PenaltyResult{}, ErrNotOrganizationMember
	}

	if !booking.UserID.Valid {
		return PenaltyResult{}, ErrNoBookingUser
	}
	userID := booking.UserID.Int64

	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return PenaltyResult{}, fmt.Errorf("loading booked user: %w", err)
	}

	// Tiered penalties for established users depend on the fresh count of
	// prior active strikes, not the cached counter.
	priorStrikes, err := q.CountActiveStrikesSince(ctx, userID, now.Add(-strikeLookback))
	if err != nil {
		return PenaltyResult{}, fmt.Errorf("counting recent strikes: %w", err)
	}

	penalty := computePenalty(Level(user.TrustLevel), priorStrikes, user, now)

	var result PenaltyResult
	err = m.database.RunInTx(ctx, func(tx *db.Queries) error {
		if _, err := tx.CreateNoShowReport(ctx, db.CreateNoShowReportParams{
			BookingID:  bookingID,
			UserID:     userID,
			ReportedBy: reporterID,
			Reason:     reason,
			ReportedAt: now,
		}); err != nil {
			return fmt.Errorf("creating report: %w", err)
		}

		if err := tx.UpdateBookingStatus(ctx, bookingID, db.BookingNoShow); err != nil {
			return fmt.Errorf("marking booking no-show: %w", err)
		}
		m.recorder.RecordTx(ctx, tx, bookingID, audit.EventUpdated, fmt.Sprintf("user:%d", reporterID))

		update := db.UpdateUserTrustParams{
			UserID:             userID,
			TrustLevel:         int64(penalty.level),
			WeeklyBookingLimit: penalty.weeklyLimit,
			ActiveStrikes:      user.ActiveStrikes + 1,
			LastStrikeAt:       sql.NullTime{Time: now, Valid: true},
			SuccessfulBookings: user.SuccessfulBookings,
			BookingBanUntil:    user.BookingBanUntil,
		}
		if penalty.banUntil != nil {
			update.BookingBanUntil = sql.NullTime{Time: *penalty.banUntil, Valid: true}
		}
		if err := tx.UpdateUserTrust(ctx, update); err != nil {
			return fmt.Errorf("applying penalty: %w", err)
		}

		var cancelled int64
		if penalty.cancelFuture {
			cancelled, err = tx.CancelFuturePendingBookings(ctx, userID, now)
			if err != nil {
				return fmt.Errorf("cancelling future bookings: %w", err)
			}
		}

		result = PenaltyResult{
			UserID:            userID,
			Action:            penalty.action,
			TrustLevel:        penalty.level,
			WeeklyLimit:       penalty.weeklyLimit,
			ActiveStrikes:     update.ActiveStrikes,
			BanUntil:          penalty.banUntil,
			CancelledBookings: cancelled,
		}
		return nil
	})
	if err != nil {
		return PenaltyResult{}, err
	}

	log.Ctx(ctx).Info().
		Int64("user_id", userID).
		Int64("booking_id", bookingID).
		Str("action", result.Action).
		Int64("active_strikes", result.ActiveStrikes).
		Msg("No-show penalty applied")

	return result, nil
}

type penalty struct {
	action       string
	level        Level
	weeklyLimit  int64
	banUntil     *time.Time
	cancelFuture bool
}

func computePenalty(level Level, priorStrikes int64, user db.User, now time.Time) penalty {
	ban := now.Add(banDuration)

	switch level {
	case Verified:
		return penalty{
			action:       "strike_and_ban",
			level:        Verified,
			weeklyLimit:  user.WeeklyBookingLimit,
			banUntil:     &ban,
			cancelFuture: true,
		}
	case Trusted:
		// Demotion writes the limit directly rather than looking up the
		// verified tier.
		return penalty{
			action:       "demoted_to_verified",
			level:        Verified,
			weeklyLimit:  demotedWeeklyLimit,
			cancelFuture: true,
		}
	case Established:
		switch {
		case priorStrikes == 0:
			return penalty{
				action:      "warning",
				level:       Established,
				weeklyLimit: warnedWeeklyLimit,
			}
		case priorStrikes == 1:
			return penalty{
				action:      "demoted_to_trusted",
				level:       Trusted,
				weeklyLimit: warnedWeeklyLimit,
			}
		default:
			// Repeat offenders keep their level but lose the booking
			// privilege for a week.
			return penalty{
				action:       "strike_and_ban",
				level:        Established,
				weeklyLimit:  user.WeeklyBookingLimit,
				banUntil:     &ban,
				cancelFuture: true,
			}
		}
	default:
		// Unverified users cannot book through the eligibility gate, but a
		// report against a grandfathered booking still has to leave a
		// consistent trail.
		return penalty{
			action:       "strike_and_ban",
			level:        Unverified,
			weeklyLimit:  user.WeeklyBookingLimit,
			banUntil:     &ban,
			cancelFuture: true,
		}
	}
}

type PromotionResult struct {
	UserID             int64  `json:"user_id"`
	Skipped            bool   `json:"skipped"`
	SkipReason         string `json:"skip_reason,omitempty"`
	TrustLevel         Level  `json:"trust_level"`
	Promoted           bool   `json:"promoted"`
	SuccessfulBookings int64  `json:"successful_bookings"`
	RedeemedStrikes    int64  `json:"redeemed_strikes"`
}

// ProcessBookingCompletion credits a booking whose slot ended with no
// report filed: increments the success counter, promotes when a threshold
// is crossed, and redeems one strike per five cumulative successes,
// oldest strike first. A booking already marked completed is skipped, so
// replaying the call never credits twice.
func (m *Machine) ProcessBookingCompletion(ctx context.Context, bookingID int64) (PromotionResult, error) {
	q := m.database.Q()
	now := m.clock.Now()

	booking, err := q.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PromotionResult{Skipped: true, SkipReason: "booking not found"}, nil
		}
		return PromotionResult{}, fmt.Errorf("loading booking: %w", err)
	}

	if booking.Status == db.BookingCompleted {
		return PromotionResult{Skipped: true, SkipReason: "booking already completed"}, nil
	}
	if now.Before(booking.EndTime) {
		return PromotionResult{}, ErrSlotNotEnded
	}

	if _, err := q.GetReportByBookingID(ctx, bookingID); err == nil {
		return PromotionResult{Skipped: true, SkipReason: "no-show report exists"}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return PromotionResult{}, fmt.Errorf("checking report: %w", err)
	}

	if !booking.UserID.Valid {
		return PromotionResult{Skipped: true, SkipReason: "booking has no associated user"}, nil
	}
	userID := booking.UserID.Int64

	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return PromotionResult{}, fmt.Errorf("loading user: %w", err)
	}

	oldTotal := user.SuccessfulBookings
	newTotal := oldTotal + 1

	level := Level(user.TrustLevel)
	weeklyLimit := user.WeeklyBookingLimit
	promoted := false
	if level == Verified && newTotal >= trustedThreshold {
		level = Trusted
		weeklyLimit = WeeklyQuota(Trusted)
		promoted = true
	} else if level == Trusted && newTotal >= establishedThreshold {
		level = Established
		weeklyLimit = WeeklyQuota(Established)
		promoted = true
	}

	redeemable := newTotal/redemptionInterval - oldTotal/redemptionInterval
	if redeemable > user.ActiveStrikes {
		redeemable = user.ActiveStrikes
	}

	var result PromotionResult
	err = m.database.RunInTx(ctx, func(tx *db.Queries) error {
		if err := tx.UpdateBookingStatus(ctx, bookingID, db.BookingCompleted); err != nil {
			return fmt.Errorf("marking booking completed: %w", err)
		}
		m.recorder.RecordTx(ctx, tx, bookingID, audit.EventCompleted, "system")

		var redeemed int64
		if redeemable > 0 {
			oldest, err := tx.ListOldestActiveReports(ctx, userID, redeemable)
			if err != nil {
				return fmt.Errorf("listing redeemable strikes: %w", err)
			}
			for _, report := range oldest {
				if err := tx.MarkReportRedeemed(ctx, report.ID, now); err != nil {
					return fmt.Errorf("redeeming strike: %w", err)
				}
				redeemed++
			}
		}

		if err := tx.UpdateUserTrust(ctx, db.UpdateUserTrustParams{
			UserID:             userID,
			TrustLevel:         int64(level),
			WeeklyBookingLimit: weeklyLimit,
			ActiveStrikes:      user.ActiveStrikes - redeemed,
			LastStrikeAt:       user.LastStrikeAt,
			SuccessfulBookings: newTotal,
			BookingBanUntil:    user.BookingBanUntil,
		}); err != nil {
			return fmt.Errorf("updating user: %w", err)
		}

		result = PromotionResult{
			UserID:             userID,
			TrustLevel:         level,
			Promoted:           promoted,
			SuccessfulBookings: newTotal,
			RedeemedStrikes:    redeemed,
		}
		return nil
	})
	if err != nil {
		return PromotionResult{}, err
	}

	if result.Promoted {
		log.Ctx(ctx).Info().
			Int64("user_id", userID).
			Str("trust_level", result.TrustLevel.String()).
			Msg("User promoted")
	}

	return result, nil
}

// ExpireOldStrikes marks active strikes older than 60 days as expired and
// decrements each affected user's counter, all in one transaction.
func (m *Machine) ExpireOldStrikes(ctx context.Context) (int64, error) {
	now := m.clock.Now()
	cutoff := now.Add(-strikeExpiryAge)

	var expired int64
	err := m.database.RunInTx(ctx, func(tx *db.Queries) error {
		stale, err := tx.ListActiveReportsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("listing stale strikes: %w", err)
		}

		perUser := make(map[int64]int64)
		for _, report := range stale {
			if err := tx.MarkReportExpired(ctx, report.ID, now); err != nil {
				return fmt.Errorf("expiring strike: %w", err)
			}
			perUser[report.UserID]++
			expired++
		}

		for userID, n := range perUser {
			if err := tx.DecrementUserStrikes(ctx, userID, n); err != nil {
				return fmt.Errorf("decrementing strikes for user %d: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		log.Ctx(ctx).Info().Int64("expired", expired).Msg("Expired old strikes")
	}
	return expired, nil
}
