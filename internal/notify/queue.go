// Package notify delivers emails off the request path with bounded retries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/platform/mailer"
	"github.com/prodemyx/prodemyx-api/pkg/config"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
)

const (
	KindPurchase = "purchase_confirmation"
	KindWelcome  = "guest_welcome"
)

type Job struct {
	Kind    string
	OrderID string
	Message mailer.Message
}

// Queue is a bounded in-process job queue drained by a fixed set of workers.
type Queue struct {
	sender mailer.Sender
	cfg    config.NotifyConfig
	jobs   chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewQueue(sender mailer.Sender, cfg config.NotifyConfig) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sender: sender,
		cfg:    cfg,
		jobs:   make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logger.Info("Notification queue started", "workers", q.cfg.Workers, "capacity", q.cfg.QueueSize)
}

// Enqueue never blocks. A full or stopped queue drops the job and returns
// an error wrapping domain.ErrNotificationFailed.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped(ctx, job, "queue stopped")
		return fmt.Errorf("%w: queue stopped", domain.ErrNotificationFailed)
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		q.dropped(ctx, job, "queue full")
		return fmt.Errorf("%w: queue full", domain.ErrNotificationFailed)
	}
}

func (q *Queue) dropped(ctx context.Context, job Job, reason string) {
	metrics.Notifications.WithLabelValues(job.Kind, "dropped").Inc()
	logger.WarnContext(ctx, "Notification dropped", "kind", job.Kind, "order_id", job.OrderID, "reason", reason)
}

// Shutdown stops intake and waits for queued jobs to finish. When ctx expires
// first, in-flight retries are abandoned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.deliver(id, job)
	}
}

func (q *Queue) deliver(workerID int, job Job) {
	start := time.Now()
	err := retry.Do(
		func() error {
			return q.sender.Send(q.ctx, job.Message)
		},
		retry.Context(q.ctx),
		retry.Attempts(q.cfg.Attempts),
		retry.Delay(q.cfg.Delay),
		retry.MaxDelay(q.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, mailer.ErrEmptyRecipient)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Notification send failed, retrying",
				"kind", job.Kind, "order_id", job.OrderID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		metrics.Notifications.WithLabelValues(job.Kind, "failed").Inc()
		logger.Error("Notification failed",
			"kind", job.Kind,
			"order_id", job.OrderID,
			"worker", workerID,
			"error", fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err),
		)
		return
	}
	metrics.Notifications.WithLabelValues(job.Kind, "sent").Inc()
	logger.Info("Notification sent",
		"kind", job.Kind,
		"order_id", job.OrderID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
