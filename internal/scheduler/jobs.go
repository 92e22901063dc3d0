package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rallyworks/courtguard/internal/db"
	"github.com/rallyworks/courtguard/internal/trust"
)

const completionSweepBatchSize = 200

// RegisterTrustJobs wires the recurring trust maintenance tasks: the
// nightly strike expiry pass and the completion sweep that credits
// bookings whose slot ended without a no-show report.
func RegisterTrustJobs(database *db.DB, machine *trust.Machine, strikeExpiryCron, completionSweepCron string) error {
	if database == nil || machine == nil {
		return fmt.Errorf("trust jobs require database and trust machine")
	}

	_, err := AddJob("strike_expiry", strikeExpiryCron, func(ctx context.Context) {
		expired, err := machine.ExpireOldStrikes(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Strike expiry job failed")
			return
		}
		if expired > 0 {
			log.Ctx(ctx).Info().Int64("expired_strikes", expired).Msg("Expired aged strikes")
		}
	})
	if err != nil {
		return fmt.Errorf("registering strike expiry job: %w", err)
	}

	_, err = AddJob("booking_completion_sweep", completionSweepCron, func(ctx context.Context) {
		runCompletionSweep(ctx, database, machine)
	})
	if err != nil {
		return fmt.Errorf("registering completion sweep job: %w", err)
	}
	return nil
}

func runCompletionSweep(ctx context.Context, database *db.DB, machine *trust.Machine) {
	logger := log.Ctx(ctx)

	elapsed, err := database.Q().ListElapsedActiveBookings(ctx, time.Now(), completionSweepBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("Completion sweep failed to list elapsed bookings")
		return
	}

	var credited, skipped int
	for _, booking := range elapsed {
		result, err := machine.ProcessBookingCompletion(ctx, booking.ID)
		if err != nil {
			logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Completion processing failed")
			continue
		}
		if result.Skipped {
			skipped++
			continue
		}
		credited++
	}
	if credited > 0 || skipped > 0 {
		logger.Info().
			Int("credited", credited).
			Int("skipped", skipped).
			Msg("Completion sweep finished")
	}
}
