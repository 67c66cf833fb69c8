package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"skillduels/domain"
	"skillduels/match"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrRecordFailed  = errors.New("record-failed")
	ErrEscrowFailed  = errors.New("escrow-failed")
	ErrPublishFailed = errors.New("publish-failed")
)

const (
	DefaultQueueSize = 256
	defaultTimeout   = time.Second * 10
)

type MatchRecorder interface {
	RecordMatch(ctx context.Context, rec domain.MatchRecord) error
}

type Escrow interface {
	Settle(ctx context.Context, ev MatchCompleted) error
}

type Publisher interface {
	Publish(ctx context.Context, ev MatchCompleted) error
	Close() error
}

// Service takes match outcomes off the room loops and settles them in the
// background. Failures are logged and never retried.
type Service struct {
	queue     chan match.Outcome
	recorder  MatchRecorder
	escrow    Escrow
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
}

func NewService(recorder MatchRecorder, escrow Escrow, publisher Publisher, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Service{
		queue:     make(chan match.Outcome, queueSize),
		recorder:  recorder,
		escrow:    escrow,
		publisher: publisher,
		timeout:   defaultTimeout,
		now:       time.Now,
	}
}

// Notify queues an outcome. It never blocks the caller; when the queue is full
// the outcome is dropped.
func (s *Service) Notify(o match.Outcome) {
	select {
	case s.queue <- o:
	default:
		slog.Error("settlement queue full, dropping outcome", "room", o.RoomCode, "match", o.MatchID, "winner", o.WinnerUserID, "aborted", o.Aborted)
	}
}

// Run settles queued outcomes until ctx is done, then settles whatever is
// still queued and returns.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case o := <-s.queue:
			s.settle(o)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

func (s *Service) drain() {
	for {
		select {
		case o := <-s.queue:
			s.settle(o)
		default:
			return
		}
	}
}

func (s *Service) settle(o match.Outcome) {
	ev := NewMatchCompleted(o, s.now())

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// the three sinks are independent, one failing must not cancel the others
	var g errgroup.Group
	g.Go(func() error {
		if err := s.recorder.RecordMatch(ctx, ev.Record()); err != nil {
			return fmt.Errorf("%w: %w", ErrRecordFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.escrow.Settle(ctx, ev); err != nil {
			return fmt.Errorf("%w: %w", ErrEscrowFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("settlement incomplete", "room", ev.RoomCode, "match", ev.MatchId, "status", ev.Status, "error", err)
		return
	}
	slog.Info("match settled", "room", ev.RoomCode, "match", ev.MatchId, "status", ev.Status, "winner", ev.WinnerUserId, "wager", ev.Wager)
}
