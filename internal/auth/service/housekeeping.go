package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/quill/internal/auth/store"
)

// HousekeepingService periodically deletes expired refresh tokens, MFA
// challenges, email codes, password resets and denied access tokens so the
// tables do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Denylist store.Denylist
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour. A nil denylist means the
// Store's own.
func NewHousekeepingService(st store.Store, denylist store.Denylist, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if denylist == nil {
		denylist = st.Denylist()
	}

	return &HousekeepingService{
		Store:    st,
		Denylist: denylist,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass and returns the number of rows deleted. Each step
// is independent; a failing one does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	ctx, span := tracer.Start(ctx, "HousekeepingService.Cleanup")
	defer span.End()

	now := clock(s.Now)
	steps := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"refresh tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
		{"mfa challenges", s.Store.MFAChallenges().DeleteExpiredChallenges},
		{"email codes", s.Store.EmailOTPs().DeleteExpiredEmailOTPs},
		{"password resets", s.Store.PasswordResets().DeleteExpiredPasswordResets},
		{"denied access tokens", s.Denylist.DeleteExpiredDeniedTokens},
	}

	var total int64
	for _, step := range steps {
		n, err := step.fn(ctx, now)
		if err != nil {
			span.RecordError(err)
			s.Logger.Error("failed to delete expired "+step.name, "error", err)
			continue
		}
		s.Logger.Debug("deleted expired "+step.name, "rows", n)
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "rows_deleted", total)
	return total
}
