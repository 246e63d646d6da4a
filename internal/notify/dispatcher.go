package notify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/portfolio-api/internal/config"
)

// Dispatcher delivers notifications on background workers so the caller
// never waits on the notifier.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	queue    chan Notification
	group    errgroup.Group

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher starts cfg.Workers workers reading from a queue of
// cfg.QueueSize entries.
func NewDispatcher(notifier Notifier, cfg config.NotifyConfig) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	d := &Dispatcher{
		notifier: notifier,
		timeout:  cfg.Timeout,
		queue:    make(chan Notification, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.group.Go(d.work)
	}
	return d
}

// Dispatch queues n and returns immediately. It reports false when n was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Printf("[notify] dispatcher closed, dropping %q", n.Subject)
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		log.Printf("[notify] queue full, dropping %q", n.Subject)
		d.dropped.Add(1)
		return false
	}
}

// Dropped returns how many notifications were never queued.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Failed returns how many queued notifications the notifier rejected.
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- d.group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() error {
	for n := range d.queue {
		d.deliver(n)
	}
	return nil
}

func (d *Dispatcher) deliver(n Notification) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.failed.Add(1)
		log.Printf("[notify] failed to deliver %q: %v", n.Subject, err)
	}
}
