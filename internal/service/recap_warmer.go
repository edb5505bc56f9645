package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/jobs"
)

type recapBuilder interface {
	Build(ctx context.Context, query RecapQuery) (*models.ClassRecap, bool, error)
}

// RecapWarmerConfig tunes the background recap rebuild pool.
type RecapWarmerConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type warmRequest struct {
	ClassID string
	Term    models.Term
}

// RecapWarmer rebuilds class recaps in the background after grade writes so
// the next read is served from cache.
type RecapWarmer struct {
	recaps  recapBuilder
	queue   *jobs.Queue
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecapWarmer constructs a warmer. Call Start before scheduling work.
func NewRecapWarmer(recaps recapBuilder, cfg RecapWarmerConfig, logger *zap.Logger) *RecapWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	w := &RecapWarmer{recaps: recaps, timeout: cfg.Timeout, logger: logger}
	w.queue = jobs.NewQueue("recap-warmer", w.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return w
}

// Start launches the worker pool.
func (w *RecapWarmer) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop waits for running rebuilds to finish and drops queued ones.
func (w *RecapWarmer) Stop() {
	w.queue.Stop()
}

// Warm schedules a rebuild of the class recap for term. Requests for a recap
// that is already queued are merged.
func (w *RecapWarmer) Warm(classID string, term models.Term) {
	_, err := w.queue.Enqueue(jobs.Job{
		Key:     RecapCacheKey(classID, term),
		Payload: warmRequest{ClassID: classID, Term: term},
	})
	if err != nil {
		w.logger.Debug("recap warm skipped", zap.String("class_id", classID), zap.Error(err))
	}
}

// Pending reports how many rebuilds are waiting.
func (w *RecapWarmer) Pending() int {
	return w.queue.Pending()
}

func (w *RecapWarmer) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(warmRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	recap, _, err := w.recaps.Build(ctx, RecapQuery{
		ClassID:      req.ClassID,
		Semester:     req.Term.Semester,
		AcademicYear: req.Term.AcademicYear,
	})
	if err != nil {
		return err
	}
	w.logger.Debug("recap warmed",
		zap.String("class_id", req.ClassID),
		zap.String("semester", req.Term.Semester),
		zap.Int("students", len(recap.Recap.Rows)),
	)
	return nil
}
