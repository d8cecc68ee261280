// Package worker runs the periodic maintenance passes: overdue marking,
// reservation expiry, notification dispatch, and token purging.
package worker

import (
	"context"
	"log"
	"time"
)

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context) (sent, failed int, err error)
}

type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int, error)
}

type Sweeper struct {
	loans         OverdueSweeper
	reservations  ExpirySweeper
	notifications Dispatcher
	tokens        TokenPurger
	interval      time.Duration
	logger        *log.Logger
}

const defaultInterval = time.Minute

func NewSweeper(loans OverdueSweeper, reservations ExpirySweeper, notifications Dispatcher, tokens TokenPurger, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		loans:         loans,
		reservations:  reservations,
		notifications: notifications,
		tokens:        tokens,
		interval:      interval,
		logger:        logger,
	}
}

// Run loops until the context is cancelled. Pass errors are logged, never
// fatal; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single maintenance pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if overdue, err := s.loans.SweepOverdue(ctx); err != nil {
		s.logger.Printf("sweep overdue loans: %v", err)
	} else if overdue > 0 {
		s.logger.Printf("sweep marked %d loan(s) overdue", overdue)
	}

	if expired, err := s.reservations.SweepExpired(ctx); err != nil {
		s.logger.Printf("sweep expired reservations: %v", err)
	} else if expired > 0 {
		s.logger.Printf("sweep expired %d reservation(s)", expired)
	}

	if sent, failed, err := s.notifications.Dispatch(ctx); err != nil {
		s.logger.Printf("dispatch notifications: %v", err)
	} else if sent > 0 || failed > 0 {
		s.logger.Printf("dispatched %d notification(s), %d failed", sent, failed)
	}

	if purged, err := s.tokens.PurgeExpiredTokens(ctx); err != nil {
		s.logger.Printf("purge tokens: %v", err)
	} else if purged > 0 {
		s.logger.Printf("purged %d expired token(s)", purged)
	}
}
