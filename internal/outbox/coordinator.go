package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
)

var (
	// ErrSyncReplayFailure is transient: the entry stays queued with its retry count bumped.
	ErrSyncReplayFailure = errors.New("sync replay failed")
	ErrNoReplayer        = errors.New("no replayer registered for action")
)

// ReplayFunc replays one queued action against the network. It must be safe to
// apply twice; the payload carries whatever identifies the action across attempts.
type ReplayFunc func(ctx context.Context, entry models.SyncQueueEntry) error

// Config is the retry policy.
type Config struct {
	// MaxAttempts dead-letters an entry after that many failed replays. 0 retries forever.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DrainResult summarises one Drain call.
type DrainResult struct {
	// Coalesced is set when another drain was running; it will make one more pass.
	Coalesced    bool `json:"coalesced"`
	Passes       int  `json:"passes"`
	Replayed     int  `json:"replayed"`
	Failed       int  `json:"failed"`
	DeadLettered int  `json:"dead_lettered"`
}

func (r *DrainResult) add(other DrainResult) {
	r.Passes += other.Passes
	r.Replayed += other.Replayed
	r.Failed += other.Failed
	r.DeadLettered += other.DeadLettered
}

// Coordinator is the outbox: it records mutating actions made while offline and
// replays them, in insertion order, when the connection comes back.
type Coordinator struct {
	queue  repositories.SyncQueueRepository
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger
	online func() bool

	mu        sync.Mutex
	replayers map[string]ReplayFunc
	draining  bool
	pending   bool
	backoff   *backoff.ExponentialBackOff
	retry     clockwork.Timer
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a Coordinator. online reports connectivity and may be nil;
// backoff re-drains are skipped while it returns false.
func NewCoordinator(queue repositories.SyncQueueRepository, cfg Config, clock clockwork.Clock, online func() bool, logger *zap.Logger) *Coordinator {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Clock = clock
	b.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		queue:     queue,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		online:    online,
		replayers: make(map[string]ReplayFunc),
		backoff:   b,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register sets the replay function of an action kind.
func (c *Coordinator) Register(action string, fn ReplayFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replayers[action] = fn
}

// Enqueue appends an action to the outbox. payload is stored as JSON.
func (c *Coordinator) Enqueue(ctx context.Context, action string, payload any) (*models.SyncQueueEntry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", action, err)
	}

	entry := &models.SyncQueueEntry{
		Action:    action,
		Payload:   body,
		Timestamp: c.clock.Now(),
	}
	if err := c.queue.Append(ctx, entry); err != nil {
		return nil, err
	}

	c.logger.Info("action queued for sync", zap.String("action", action), zap.Uint64("entry", entry.ID))
	return entry, nil
}

// Pending returns the entries awaiting replay, oldest first.
func (c *Coordinator) Pending(ctx context.Context) ([]models.SyncQueueEntry, error) {
	return c.queue.List(ctx)
}

// DeadLetters returns the entries that exhausted their attempts.
func (c *Coordinator) DeadLetters(ctx context.Context) ([]models.SyncQueueEntry, error) {
	return c.queue.ListDeadLetters(ctx)
}

// Trigger starts a drain in the background.
func (c *Coordinator) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.Drain(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("background drain failed", zap.Error(err))
		}
	}()
}

// Drain attempts every queued entry once, in insertion order. Success removes the
// entry, failure bumps its retry count and leaves it in place. A call made while
// another drain is running returns at once and makes that drain run one more pass.
// The error is only set when the queue itself cannot be read or written.
func (c *Coordinator) Drain(ctx context.Context) (DrainResult, error) {
	c.mu.Lock()
	if c.draining {
		c.pending = true
		c.mu.Unlock()
		return DrainResult{Coalesced: true}, nil
	}
	c.draining = true
	c.mu.Unlock()

	var total DrainResult
	for {
		result, err := c.drainOnce(ctx)
		total.add(result)

		c.mu.Lock()
		if err != nil || !c.pending {
			c.draining = false
			c.pending = false
			c.afterDrain(total, err)
			c.mu.Unlock()
			return total, err
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Coordinator) drainOnce(ctx context.Context) (DrainResult, error) {
	result := DrainResult{Passes: 1}

	entries, err := c.queue.List(ctx)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		replayErr := c.replay(ctx, entry)
		if replayErr == nil {
			if err := c.queue.Remove(ctx, entry.ID); err != nil {
				return result, err
			}
			result.Replayed++
			continue
		}

		result.Failed++
		updated, err := c.queue.RecordFailure(ctx, entry.ID, replayErr.Error(), c.cfg.MaxAttempts)
		if err != nil {
			return result, err
		}
		if updated.DeadLettered {
			result.DeadLettered++
			c.logger.Error("sync entry dead-lettered",
				zap.Uint64("entry", entry.ID), zap.String("action", entry.Action),
				zap.Int("attempts", updated.RetryCount), zap.Error(replayErr))
			continue
		}
		c.logger.Warn("sync replay failed, entry kept for next drain",
			zap.Uint64("entry", entry.ID), zap.String("action", entry.Action),
			zap.Int("retry_count", updated.RetryCount), zap.Error(replayErr))
	}

	if result.Replayed > 0 || result.Failed > 0 {
		c.logger.Info("sync drain pass done",
			zap.Int("replayed", result.Replayed), zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (c *Coordinator) replay(ctx context.Context, entry models.SyncQueueEntry) error {
	c.mu.Lock()
	fn, ok := c.replayers[entry.Action]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoReplayer, entry.Action)
	}
	if err := fn(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncReplayFailure, err)
	}
	return nil
}

// afterDrain must be called with mu held.
func (c *Coordinator) afterDrain(result DrainResult, err error) {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if err == nil && result.Failed == result.DeadLettered {
		c.backoff.Reset()
		return
	}
	if c.closed {
		return
	}

	delay := c.backoff.NextBackOff()
	if delay == backoff.Stop {
		return
	}
	c.logger.Debug("scheduling sync retry", zap.Duration("delay", delay))
	c.retry = c.clock.AfterFunc(delay, func() {
		if c.online != nil && !c.online() {
			return
		}
		c.Trigger()
	})
}

// Close stops scheduled retries and waits for background drains.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
