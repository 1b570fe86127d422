package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Sequencer is a strict FIFO mutex. The zero value is not usable; call New.
type Sequencer struct {
	mu   sync.Mutex
	tail chan struct{} // closed when the most recent ticket is released

	pending atomic.Int64

	locker  ports.DistributedLocker // Optional distributed locker
	lockKey string
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Sequencer.
type Option func(*Sequencer)

// WithLocker enables distributed locking on key.
func WithLocker(locker ports.DistributedLocker, key string) Option {
	return func(s *Sequencer) {
		s.locker = locker
		s.lockKey = key
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Sequencer) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Sequencer.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// New creates an unlocked Sequencer.
func New(opts ...Option) *Sequencer {
	done := make(chan struct{})
	close(done)
	s := &Sequencer{
		tail:    done,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending returns the number of callers queued or running.
func (s *Sequencer) Pending() int {
	return int(s.pending.Load())
}

// Do runs fn once every earlier caller has released the lock.
//
// If ctx is cancelled before the lock is acquired, Do returns ctx.Err() and
// fn never runs. fn receives a context that is not cancelled with ctx.
func (s *Sequencer) Do(ctx context.Context, fn func(context.Context) error) error {
	// Take a ticket: our predecessor is the current tail, we become the new one.
	done := make(chan struct{})
	s.mu.Lock()
	prev := s.tail
	s.tail = done
	s.pending.Add(1)
	s.mu.Unlock()
	defer s.pending.Add(-1)

	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }

	select {
	case <-prev:
	case <-ctx.Done():
		// Hand our slot on only after the predecessor finishes.
		go func() {
			<-prev
			release()
		}()
		return ctx.Err()
	}
	defer release()

	runCtx := context.WithoutCancel(ctx)
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.lockKey, s.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(runCtx); err != nil {
				s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", s.lockKey,
					"err", err,
				)
			}
		}()
	}

	return fn(runCtx)
}

// WithExclusiveAccess runs fn under s and returns its result.
func WithExclusiveAccess[T any](ctx context.Context, s *Sequencer, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := s.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
