package app

import (
	"context"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/clock"
	"github.com/BaoThanh22042004/library-api/internal/domain"
)

type NotificationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetNotificationForUpdate(ctx context.Context, id string) (domain.Notification, error)
	ListDispatchable(ctx context.Context, maxAttempts, limit int) ([]domain.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	MarkNotificationFailed(ctx context.Context, id string) error
	MarkNotificationRead(ctx context.Context, id string) error
}

// Sender delivers a notification to the outside world (message broker,
// mail relay, or just the log).
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

type NotificationService struct {
	repo        NotificationRepository
	clock       clock.Clock
	sender      Sender
	maxAttempts int
	batchSize   int
}

const (
	defaultMaxSendAttempts = 3
	defaultDispatchBatch   = 100
)

func NewNotificationService(repo NotificationRepository, clk clock.Clock, sender Sender, opts ...NotificationServiceOption) *NotificationService {
	svc := &NotificationService{
		repo:        repo,
		clock:       clk,
		sender:      sender,
		maxAttempts: defaultMaxSendAttempts,
		batchSize:   defaultDispatchBatch,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type NotificationServiceOption func(*NotificationService)

// WithDispatchPolicy overrides the retry limit and batch size per sweep.
func WithDispatchPolicy(maxAttempts, batchSize int) NotificationServiceOption {
	return func(s *NotificationService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if batchSize > 0 {
			s.batchSize = batchSize
		}
	}
}

// Dispatch delivers pending (and previously failed, under the attempt limit)
// notifications, marking each sent or failed. Returns sent/failed counts.
func (s *NotificationService) Dispatch(ctx context.Context) (sent, failed int, err error) {
	batch, err := s.repo.ListDispatchable(ctx, s.maxAttempts, s.batchSize)
	if err != nil {
		return 0, 0, err
	}

	now := s.clock.Now()
	for _, n := range batch {
		if sendErr := s.sender.Send(ctx, n); sendErr != nil {
			if markErr := s.repo.MarkNotificationFailed(ctx, n.ID); markErr != nil {
				return sent, failed, markErr
			}
			failed++
			continue
		}
		if markErr := s.repo.MarkNotificationSent(ctx, n.ID, now); markErr != nil {
			return sent, failed, markErr
		}
		sent++
	}
	return sent, failed, nil
}

type MarkReadInput struct {
	NotificationID string
	UserID         string
}

// MarkRead flips a sent notification to read. Only the recipient may do so;
// marking an already-read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, in MarkReadInput) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		n, err := s.repo.GetNotificationForUpdate(txCtx, in.NotificationID)
		if err != nil {
			return err
		}
		if n.UserID != in.UserID {
			return domain.ErrPermissionDenied
		}
		switch n.Status {
		case domain.NotificationStatusRead:
			return nil
		case domain.NotificationStatusSent:
			return s.repo.MarkNotificationRead(txCtx, n.ID)
		default:
			return domain.ErrNotificationNotSent
		}
	})
}

// ListByUser returns the user's notifications, newest first.
func (s *NotificationService) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListNotificationsByUser(ctx, userID)
}
