package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forum/internal/log"
)

// DefaultAuditInterval is how often the scheduler runs a full audit.
const DefaultAuditInterval = 15 * time.Minute

// AuditScheduler runs Auditor.AuditAll on a ticker until stopped.
type AuditScheduler struct {
	auditor  *Auditor
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAuditScheduler(auditor *Auditor, interval time.Duration, logger *log.Logger) *AuditScheduler {
	if interval <= 0 {
		interval = DefaultAuditInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditScheduler{
		auditor:  auditor,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start runs one audit immediately and then one per interval.
// Returns an error if already running.
func (s *AuditScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("audit scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Audit scheduler started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the in-flight audit, bounded by ctx.
func (s *AuditScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Audit scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Audit scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *AuditScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *AuditScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *AuditScheduler) runOnce(ctx context.Context) {
	if _, err := s.auditor.AuditAll(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled audit failed",
			log.FieldError, err,
			log.FieldErrorType, ErrorType(err))
	}
}
