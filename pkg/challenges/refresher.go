package challenges

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// refresher runs a job immediately and then on a fixed interval
type refresher struct {
	cron     *cron.Cron
	interval time.Duration
	job      func(ctx context.Context)
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func newRefresher(interval time.Duration, job func(ctx context.Context), logger *zap.Logger) *refresher {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := cronLogger{sugar: logger.Sugar()}
	return &refresher{
		cron:     cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))),
		interval: interval,
		job:      job,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *refresher) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return fmt.Errorf("refresher already started")
	}

	spec := "@every " + r.interval.String()
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	r.started = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Initial refresh panicked", zap.Any("panic", p))
			}
		}()
		r.run()
	}()

	r.cron.Start()
	r.logger.Info("Challenge refresher started", zap.Duration("interval", r.interval))
	return nil
}

func (r *refresher) run() {
	ctx, cancel := context.WithTimeout(r.ctx, r.interval)
	defer cancel()
	r.job(ctx)
}

func (r *refresher) stop(ctx context.Context) error {
	r.mu.Lock()
	started, stopped := r.started, r.stopped
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	if !started || stopped {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-r.cron.Stop().Done()
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("Challenge refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
