// Package jobs runs the asynchronous delivery pipeline between mutation
// handlers and the push broker. Handlers enqueue change notifications
// and return immediately; a small worker pool publishes them, retrying
// failed deliveries a bounded number of times before dropping them.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/pkg/push"
)

// Delivery is one queued change notification on its way to the broker.
type Delivery struct {
	ID       string
	Event    push.Event
	Attempt  int
	Enqueued time.Time
}

// Publisher hands a delivery to the broker.
type Publisher func(context.Context, Delivery) error

// Config bounds the delivery worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is the in-memory delivery queue for push notifications.
type Queue struct {
	publish Publisher

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	deliveries chan Delivery
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

// NewQueue builds a delivery queue feeding the given publisher.
func NewQueue(publish Publisher, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		publish:    publish,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		deliveries: make(chan Delivery, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("push delivery queue started", "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("push delivery queue stopped")
}

// Enqueue pushes a delivery onto the queue.
func (q *Queue) Enqueue(d Delivery) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("delivery queue not started")
	}
	if d.Enqueued.IsZero() {
		d.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("delivery queue stopped: %w", ctx.Err())
	case q.deliveries <- d:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case d := <-q.deliveries:
			if err := q.publish(q.ctx, d); err != nil {
				q.handleFailure(d, err)
			}
		}
	}
}

func (q *Queue) handleFailure(d Delivery, err error) {
	d.Attempt++
	if d.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("push delivery dropped after retries",
			"delivery_id", d.ID, "topic", d.Event.Topic, "year", d.Event.Year, "error", err)
		return
	}
	q.logger.Sugar().Warnw("push delivery failed, retrying",
		"delivery_id", d.ID, "topic", d.Event.Topic, "year", d.Event.Year, "attempt", d.Attempt, "error", err)

	go func(d Delivery) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(d); err != nil {
				q.logger.Sugar().Errorw("failed to requeue push delivery",
					"delivery_id", d.ID, "topic", d.Event.Topic, "error", err)
			}
		}
	}(d)
}
