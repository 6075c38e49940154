package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"booking-engine/internal/telemetry"
)

var (
	// Hold lifecycle counters
	HoldsCreated  *telemetry.Counter
	HoldsReleased *telemetry.Counter
	HoldsExpired  *telemetry.Counter

	// Booking counters
	BookingsConfirmed *telemetry.Counter
	ConfirmReplays    *telemetry.Counter

	// Contention counters
	SeatConflicts    *telemetry.Counter
	VersionConflicts *telemetry.Counter

	// Error tracking
	ErrorsTotal *telemetry.Counter

	// Histograms
	HoldLifetime    *telemetry.Histogram
	RequestDuration *telemetry.Histogram

	// Gauges
	ActiveHolds *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all instruments. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	HoldsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_created_total",
		Description: "Total number of seat holds created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldsReleased, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_released_total",
		Description: "Total number of holds released by their owner",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_holds_expired_total",
		Description: "Total number of holds reclaimed after expiry",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_confirmations_total",
		Description: "Total number of bookings confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ConfirmReplays, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_confirm_replays_total",
		Description: "Total number of confirmation requests served from a prior result",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_seat_conflicts_total",
		Description: "Total number of hold attempts rejected because a seat was taken",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	VersionConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_version_conflicts_total",
		Description: "Total number of hold attempts rejected by the version fence",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_errors_total",
		Description: "Total number of errors by type",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	HoldLifetime, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_hold_lifetime_seconds",
		Description: "Time from hold creation to confirmation or release",
		Unit:        "s",
	}, []float64{1, 5, 10, 30, 60, 120, 300, 600, 900})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	ActiveHolds, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_active_holds",
		Description: "Current number of unexpired holds",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordHoldCreated records a new hold
func RecordHoldCreated(ctx context.Context, showingID string, seats int) {
	if HoldsCreated != nil {
		HoldsCreated.Inc(ctx,
			attribute.String("showing_id", showingID),
			attribute.Int("seats", seats),
		)
	}
	if ActiveHolds != nil {
		ActiveHolds.Inc(ctx)
	}
}

// RecordHoldReleased records an owner-initiated release
func RecordHoldReleased(ctx context.Context, showingID string, lifetimeSeconds float64) {
	if HoldsReleased != nil {
		HoldsReleased.Inc(ctx, attribute.String("showing_id", showingID))
	}
	if HoldLifetime != nil {
		HoldLifetime.Record(ctx, lifetimeSeconds, attribute.String("outcome", "released"))
	}
	if ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordHoldExpired records holds reclaimed by the reaper
func RecordHoldExpired(ctx context.Context, showingID string, count int64) {
	if HoldsExpired != nil {
		HoldsExpired.Add(ctx, count, attribute.String("showing_id", showingID))
	}
	if ActiveHolds != nil {
		ActiveHolds.Add(ctx, -count)
	}
}

// RecordConfirmation records a completed booking
func RecordConfirmation(ctx context.Context, showingID string, lifetimeSeconds float64) {
	if BookingsConfirmed != nil {
		BookingsConfirmed.Inc(ctx, attribute.String("showing_id", showingID))
	}
	if HoldLifetime != nil {
		HoldLifetime.Record(ctx, lifetimeSeconds, attribute.String("outcome", "confirmed"))
	}
	if ActiveHolds != nil {
		ActiveHolds.Dec(ctx)
	}
}

// RecordConfirmReplay records a confirmation answered from a prior result
func RecordConfirmReplay(ctx context.Context, showingID string) {
	if ConfirmReplays != nil {
		ConfirmReplays.Inc(ctx, attribute.String("showing_id", showingID))
	}
}

// RecordSeatConflict records a rejected claim
func RecordSeatConflict(ctx context.Context, showingID string) {
	if SeatConflicts != nil {
		SeatConflicts.Inc(ctx, attribute.String("showing_id", showingID))
	}
}

// RecordVersionConflict records a claim rejected by the version fence
func RecordVersionConflict(ctx context.Context, showingID string) {
	if VersionConflicts != nil {
		VersionConflicts.Inc(ctx, attribute.String("showing_id", showingID))
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records HTTP request duration
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
}
