package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"booking-engine/internal/domain"
	"booking-engine/internal/logger"
	"booking-engine/internal/metrics"
	"booking-engine/internal/repository"
	"booking-engine/internal/service"
)

// ReaperConfig contains configuration for the expiry reaper
type ReaperConfig struct {
	// ScanInterval is the interval between scans for expired holds
	ScanInterval time.Duration
	// BatchSize is the number of holds to process in each scan
	BatchSize int
}

// DefaultReaperConfig returns default configuration
func DefaultReaperConfig() *ReaperConfig {
	return &ReaperConfig{
		ScanInterval: 5 * time.Minute,
		BatchSize:    100,
	}
}

// Reaper scans for expired holds and returns their seats to the grid
type Reaper struct {
	showings       repository.ShowingStore
	holds          repository.HoldStore
	eventPublisher service.EventPublisher
	config         *ReaperConfig
	log            *logger.Logger
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool

	// Stats
	totalExpired     int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// NewReaper creates a new expiry reaper
func NewReaper(
	showings repository.ShowingStore,
	holds repository.HoldStore,
	eventPublisher service.EventPublisher,
	config *ReaperConfig,
) *Reaper {
	if config == nil {
		config = DefaultReaperConfig()
	}
	if eventPublisher == nil {
		eventPublisher = service.NewNoOpEventPublisher()
	}

	return &Reaper{
		showings:       showings,
		holds:          holds,
		eventPublisher: eventPublisher,
		config:         config,
		log:            logger.Get(),
		stopCh:         make(chan struct{}),
	}
}

// Start starts the reaper
func (w *Reaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry reaper")

	w.wg.Add(1)
	go w.scanExpiredHolds(ctx)

	return nil
}

// Stop stops the reaper and waits for the current scan to finish
func (w *Reaper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry reaper")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry reaper stopped")
}

// scanExpiredHolds periodically scans for expired holds
func (w *Reaper) scanExpiredHolds(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of expired holds. A failure on one hold is
// logged and does not stop the rest of the batch.
func (w *Reaper) Sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.mu.Unlock()

	expired, err := w.holds.GetExpired(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to get expired holds: %v", err))
		return
	}

	if len(expired) == 0 {
		return
	}

	w.log.Info(fmt.Sprintf("Found %d expired holds to reclaim", len(expired)))

	var reclaimed int
	for _, hold := range expired {
		if err := w.expireHold(ctx, hold); err != nil {
			w.log.Error(fmt.Sprintf("Failed to expire hold %s: %v", hold.ID, err))
			continue
		}
		reclaimed++
	}

	w.mu.Lock()
	w.totalExpired += int64(reclaimed)
	w.lastExpiredCount = reclaimed
	w.mu.Unlock()
}

// expireHold reclaims a single hold. The grid is released before the
// record is cancelled so a crash between the two steps leaves the hold
// for the next sweep rather than orphaning reserved seats.
func (w *Reaper) expireHold(ctx context.Context, hold *domain.Hold) error {
	if _, err := w.showings.ReleaseSeats(ctx, hold.ShowingID, hold.Coords(), hold.ID); err != nil {
		if errors.Is(err, domain.ErrSeatConflict) {
			// None of the cells still belong to this hold, so a confirm or
			// release already beat the reaper to the grid
			w.log.Debug(fmt.Sprintf("Seats of hold %s already moved on, skipping grid release", hold.ID))
		} else if errors.Is(err, domain.ErrShowingNotFound) {
			w.log.Warn(fmt.Sprintf("Showing %s of hold %s no longer exists", hold.ShowingID, hold.ID))
		} else {
			return fmt.Errorf("failed to release seats: %w", err)
		}
	}

	if err := w.holds.Cancel(ctx, hold.ID, "hold expired", time.Now()); err != nil {
		if errors.Is(err, domain.ErrHoldNotActive) {
			// Confirmed or released concurrently, nothing left to do
			return nil
		}
		return fmt.Errorf("failed to cancel hold record: %w", err)
	}

	if err := w.eventPublisher.PublishHoldExpired(ctx, hold); err != nil {
		w.log.Warn(fmt.Sprintf("Failed to publish hold expired event for %s: %v", hold.ID, err))
	}
	metrics.RecordHoldExpired(ctx, hold.ShowingID, 1)

	w.log.Info(fmt.Sprintf("Expired hold %s (user: %s, showing: %s, seats: %d)",
		hold.ID, hold.UserID, hold.ShowingID, len(hold.Seats)))

	return nil
}

// GetStats returns reaper statistics
func (w *Reaper) GetStats() *ReaperStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ReaperStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}

// ReaperStats contains reaper statistics
type ReaperStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}
