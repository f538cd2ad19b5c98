package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
)

// ExpiryService runs the background sweeps that keep the seat ledger
// honest: pending bookings past their hold deadline are expired and
// their seats freed, and stray holds without a live owner are released.
// The sweeps are a backstop; the hot path also clears lapsed holds
// lazily whenever seats are claimed.
type ExpiryService struct {
	cron      *cron.Cron
	bookings  *BookingService
	seats     *database.SeatRepository
	batchSize int
	interval  time.Duration
	logger    *logrus.Logger
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(bookings *BookingService, seats *database.SeatRepository, cfg *config.BookingConfig, logger *logrus.Logger) *ExpiryService {
	return &ExpiryService{
		cron:      cron.New(cron.WithSeconds()),
		bookings:  bookings,
		seats:     seats,
		batchSize: cfg.SweepBatchSize,
		interval:  cfg.SweepInterval,
		logger:    logger,
	}
}

// Start schedules the sweep jobs
func (s *ExpiryService) Start() error {
	every := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(every, s.sweepExpiredBookings); err != nil {
		return fmt.Errorf("failed to schedule booking expiry sweep: %w", err)
	}

	// Orphan cleanup is rare; hourly is plenty
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepOrphanHolds); err != nil {
		return fmt.Errorf("failed to schedule orphan hold sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("interval", s.interval.String()).Info("Expiry sweeps scheduled")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *ExpiryService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Expiry sweeps stopped")
}

// RunSweepNow triggers the booking expiry sweep immediately
func (s *ExpiryService) RunSweepNow() (int, error) {
	return s.bookings.ExpireLapsed(s.batchSize)
}

func (s *ExpiryService) sweepExpiredBookings() {
	start := time.Now()
	expired, err := s.bookings.ExpireLapsed(s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Booking expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":     expired,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Expired lapsed bookings")
	}
}

func (s *ExpiryService) sweepOrphanHolds() {
	released, err := s.seats.ReleaseOrphanHolds()
	if err != nil {
		s.logger.WithError(err).Error("Orphan hold sweep failed")
		return
	}
	if released > 0 {
		s.logger.WithField("released", released).Warn("Released orphan seat holds")
	}
}
