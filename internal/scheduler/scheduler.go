// Package scheduler runs periodic maintenance jobs outside the request path.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/clock"
	"github.com/smallbiznis/procura/internal/distlock"
	obscontext "github.com/smallbiznis/procura/internal/observability/context"
	obslogger "github.com/smallbiznis/procura/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/procura/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/procura/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobReconcilePayments = "reconcile_payments"

	jobLockKey = "procura:scheduler:%s"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Payments paymentdomain.Service
	Locker   *distlock.Locker    `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Config   Config              `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	payments paymentdomain.Service
	locker   *distlock.Locker
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Payments == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		payments: p.Payments,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every job a single time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobReconcilePayments, s.ReconcilePaymentsJob)
}

// ReconcilePaymentsJob settles INITIATED payments the gateway captured but never confirmed to us.
func (s *Scheduler) ReconcilePaymentsJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)
	summary, err := s.payments.ReconcileStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if summary.Checked > 0 {
		s.logger(ctx).Info("stale payments reconciled",
			zap.Int("checked", summary.Checked),
			zap.Int("settled", summary.Settled),
			zap.Int("pending", summary.Pending),
			zap.Int("failed", summary.Failed),
		)
	}
	return nil
}

// runJob bounds fn by the job timeout. With redis configured only one replica runs a job per tick.
// A timeout is logged and counted but not returned.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	runID := s.genID.Generate().String()
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	ctx = obscontext.WithRequestID(ctx, runID)
	log := s.logger(ctx).With(zap.String("job", name))

	if s.locker.Enabled() {
		key := fmt.Sprintf(jobLockKey, name)
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.Interval)
		if err != nil {
			log.Warn("job lock unavailable", zap.Error(err))
			s.metrics.RecordJobRun(ctx, name, "error", time.Since(start))
			return nil
		}
		if !ok {
			s.metrics.RecordJobRun(ctx, name, "skipped", time.Since(start))
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.Background(), key, token); err != nil {
				log.Warn("release job lock", zap.Error(err))
			}
		}()
	}

	err := fn(ctx)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		s.metrics.RecordJobRun(ctx, name, "ok", elapsed)
		return nil
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		s.metrics.RecordJobRun(ctx, name, "timeout", elapsed)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout))
		return nil
	default:
		s.metrics.RecordJobRun(ctx, name, "error", elapsed)
		return fmt.Errorf("%s: %w", name, err)
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
