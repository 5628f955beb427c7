// Package scheduler runs periodic aggregation and scoring for every
// organization with active supply components.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	"github.com/flowcomply/compliance-engine/internal/metrics"
)

// CurrentPeriod makes each run target the annual period open at run time.
const CurrentPeriod = "current"

type OrganizationLister interface {
	ListOrganizationsWithActiveComponents(ctx context.Context) ([]uuid.UUID, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, orgID uuid.UUID, period string) (*dwqar.DWQARReport, error)
}

type Scorer interface {
	Calculate(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error)
}

type Config struct {
	Interval    time.Duration
	Concurrency int
	Period      string
	RunOnStart  bool
	// Score recalculates the compliance score after each successful aggregation.
	Score bool
}

// RunSummary describes one completed pass.
type RunSummary struct {
	Period        string
	Organizations int
	Aggregated    int
	Scored        int
	Skipped       int
	Failures      int
	Duration      time.Duration
}

type Scheduler struct {
	orgs       OrganizationLister
	aggregator Aggregator
	scorer     Scorer
	config     Config
	metrics    *metrics.Registry
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Scheduler)

func WithMetrics(r *metrics.Registry) Option {
	return func(s *Scheduler) { s.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(logger *zap.Logger, orgs OrganizationLister, aggregator Aggregator, scorer Scorer, config Config, opts ...Option) *Scheduler {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Period == "" {
		config.Period = CurrentPeriod
	}
	s := &Scheduler{
		orgs:       orgs,
		aggregator: aggregator,
		scorer:     scorer,
		config:     config,
		logger:     logger.Named("scheduler"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a pass every Interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.NewValidationError(errors.CodeInvalidInput, "scheduler interval must be positive")
	}
	if s.config.RunOnStart {
		s.runLogged(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

func (s *Scheduler) resolvePeriod() string {
	if s.config.Period == CurrentPeriod {
		return dwqar.CurrentAnnual(s.now()).String()
	}
	return s.config.Period
}

// RunOnce processes every organization once. A failure for one
// organization is logged and counted without stopping the others; only a
// failure to list organizations is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	start := s.now()
	summary := RunSummary{Period: s.resolvePeriod()}

	orgIDs, err := s.orgs.ListOrganizationsWithActiveComponents(ctx)
	if err != nil {
		return summary, errors.NewInternalError("failed to list organizations").WithCause(err)
	}
	summary.Organizations = len(orgIDs)

	var aggregated, scored, skipped, failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			log := s.logger.With(zap.String("organization_id", orgID.String()), zap.String("period", summary.Period))

			_, err := s.aggregator.Aggregate(ctx, orgID, summary.Period)
			switch {
			case err == nil:
				aggregated.Add(1)
			case errors.HasCode(err, errors.CodeUpsertConflict):
				log.Info("aggregation already running, skipped")
				skipped.Add(1)
				return nil
			case errors.HasCode(err, errors.CodeInvalidStatusTransition):
				// Submitted periods are frozen; the score still refreshes.
				log.Info("period already submitted, aggregation skipped")
				skipped.Add(1)
			default:
				log.Error("aggregation failed", zap.Error(err))
				failures.Add(1)
				return nil
			}

			if !s.config.Score || s.scorer == nil {
				return nil
			}
			if _, err := s.scorer.Calculate(ctx, orgID); err != nil {
				log.Error("score calculation failed", zap.Error(err))
				failures.Add(1)
				return nil
			}
			scored.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary.Aggregated = int(aggregated.Load())
	summary.Scored = int(scored.Load())
	summary.Skipped = int(skipped.Load())
	summary.Failures = int(failures.Load())
	summary.Duration = s.now().Sub(start)

	if s.metrics != nil {
		s.metrics.RecordSchedulerRun(ctx, summary.Duration, summary.Organizations, summary.Failures)
	}
	s.logger.Info("scheduled run complete",
		zap.String("period", summary.Period),
		zap.Int("organizations", summary.Organizations),
		zap.Int("aggregated", summary.Aggregated),
		zap.Int("scored", summary.Scored),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failures", summary.Failures),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}
