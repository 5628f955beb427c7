package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the engine's OpenTelemetry instruments.
type Registry struct {
	meter metric.Meter

	// Aggregation metrics
	AggregationDuration metric.Float64Histogram
	SamplesRead         metric.Int64Counter
	AggregatesWritten   metric.Int64Counter
	UpsertConflicts     metric.Int64Counter
	ReportCompleteness  metric.Float64Histogram

	// Scoring metrics
	OverallScore       metric.Float64Histogram
	ScoreCalculations  metric.Int64Counter
	RecommendationsOut metric.Int64Counter

	// Shared
	DivisionGuards metric.Int64Counter

	// Scheduler metrics
	SchedulerRunDuration metric.Float64Histogram
	SchedulerFailures    metric.Int64Counter
	LastRunOrgs          metric.Int64ObservableGauge
	DatabaseOpenConns    metric.Int64ObservableGauge

	// State for observable metrics
	mu          sync.RWMutex
	dbOpenConns int64
	lastRunOrgs int64
	lastRunAt   time.Time
}

// NewRegistry creates the registry on the global meter provider.
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates the registry on an explicit meter.
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initAggregationMetrics(); err != nil {
		return nil, err
	}
	if err := r.initScoringMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initAggregationMetrics() error {
	var err error

	r.AggregationDuration, err = r.meter.Float64Histogram(
		"flowcomply.dwqar.aggregation_duration",
		metric.WithDescription("Duration of a full period aggregation in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 50, 100, 500, 1000, 5000, 30000),
	)
	if err != nil {
		return err
	}

	r.SamplesRead, err = r.meter.Int64Counter(
		"flowcomply.dwqar.samples_read_total",
		metric.WithDescription("Water quality samples read during aggregation"),
	)
	if err != nil {
		return err
	}

	r.AggregatesWritten, err = r.meter.Int64Counter(
		"flowcomply.dwqar.aggregates_written_total",
		metric.WithDescription("Rule compliance aggregates persisted"),
	)
	if err != nil {
		return err
	}

	r.UpsertConflicts, err = r.meter.Int64Counter(
		"flowcomply.dwqar.upsert_conflict_total",
		metric.WithDescription("Recomputations rejected because another writer held the key"),
	)
	if err != nil {
		return err
	}

	r.ReportCompleteness, err = r.meter.Float64Histogram(
		"flowcomply.dwqar.completeness",
		metric.WithDescription("Estimated report completeness percentage"),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 75, 90, 95, 100),
	)
	return err
}

func (r *Registry) initScoringMetrics() error {
	var err error

	r.OverallScore, err = r.meter.Float64Histogram(
		"flowcomply.scoring.overall_score",
		metric.WithDescription("Overall compliance score distribution"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	)
	if err != nil {
		return err
	}

	r.ScoreCalculations, err = r.meter.Int64Counter(
		"flowcomply.scoring.calculation_total",
		metric.WithDescription("Compliance score calculations performed"),
	)
	if err != nil {
		return err
	}

	r.RecommendationsOut, err = r.meter.Int64Counter(
		"flowcomply.scoring.recommendation_total",
		metric.WithDescription("Recommendations generated, by severity"),
	)
	if err != nil {
		return err
	}

	r.DivisionGuards, err = r.meter.Int64Counter(
		"flowcomply.division_guard_total",
		metric.WithDescription("Zero-denominator ratios resolved to their fallback value"),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.SchedulerRunDuration, err = r.meter.Float64Histogram(
		"flowcomply.scheduler.run_duration",
		metric.WithDescription("Duration of a scheduled recomputation run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 300, 900, 3600),
	)
	if err != nil {
		return err
	}

	r.SchedulerFailures, err = r.meter.Int64Counter(
		"flowcomply.scheduler.organization_failure_total",
		metric.WithDescription("Organizations whose scheduled recomputation failed"),
	)
	if err != nil {
		return err
	}

	r.LastRunOrgs, err = r.meter.Int64ObservableGauge(
		"flowcomply.scheduler.last_run_organizations",
		metric.WithDescription("Organizations processed by the most recent scheduled run"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.lastRunOrgs)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.DatabaseOpenConns, err = r.meter.Int64ObservableGauge(
		"flowcomply.system.db_open_connections",
		metric.WithDescription("Open connections on the primary database pool"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.dbOpenConns)
			return nil
		}),
	)
	return err
}

// RecordAggregation records one completed aggregation run.
func (r *Registry) RecordAggregation(ctx context.Context, period string, d time.Duration, samples, aggregates int, completeness float64) {
	attrs := metric.WithAttributes(attribute.String("period_type", periodType(period)))
	r.AggregationDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	r.SamplesRead.Add(ctx, int64(samples), attrs)
	r.AggregatesWritten.Add(ctx, int64(aggregates), attrs)
	r.ReportCompleteness.Record(ctx, completeness, attrs)
}

func (r *Registry) RecordUpsertConflict(ctx context.Context) {
	r.UpsertConflicts.Add(ctx, 1)
}

// RecordDivisionGuard counts each guarded term under its name.
func (r *Registry) RecordDivisionGuard(ctx context.Context, terms ...string) {
	for _, t := range terms {
		r.DivisionGuards.Add(ctx, 1, metric.WithAttributes(attribute.String("term", t)))
	}
}

// RecordScore records a calculated overall score and its recommendation severities.
func (r *Registry) RecordScore(ctx context.Context, overall int, severities []string) {
	r.OverallScore.Record(ctx, float64(overall))
	r.ScoreCalculations.Add(ctx, 1)
	for _, s := range severities {
		r.RecommendationsOut.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", s)))
	}
}

// RecordSchedulerRun records a finished scheduled run.
func (r *Registry) RecordSchedulerRun(ctx context.Context, d time.Duration, orgs, failures int) {
	r.SchedulerRunDuration.Record(ctx, d.Seconds())
	if failures > 0 {
		r.SchedulerFailures.Add(ctx, int64(failures))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRunOrgs = int64(orgs)
	r.lastRunAt = time.Now()
}

// SetDBOpenConns sets the primary pool's open connection count
func (r *Registry) SetDBOpenConns(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbOpenConns = n
}

// LastRun returns when the scheduler last finished and how many organizations it processed.
func (r *Registry) LastRun() (time.Time, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRunAt, r.lastRunOrgs
}

func periodType(period string) string {
	if len(period) > 5 && period[5:] == "Annual" {
		return "annual"
	}
	return "quarterly"
}
