package dwqar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
	"github.com/flowcomply/compliance-engine/internal/metrics"
)

// Service aggregates water quality samples into rule compliance results and
// manages the DWQAR report lifecycle. It keeps no state between calls.
type Service struct {
	logger  *zap.Logger
	repos   Repositories
	locker  Locker
	metrics *metrics.Registry
	tracer  trace.Tracer
	config  Config
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records engine metrics on r.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(logger *zap.Logger, repos Repositories, locker Locker, config Config, opts ...Option) *Service {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultConfig().LockTTL
	}
	if config.Completeness.SamplesPerPeriod <= 0 {
		config.Completeness = dwqar.DefaultCompletenessPolicy()
	}

	s := &Service{
		logger: logger.Named("dwqar"),
		repos:  repos,
		locker: locker,
		tracer: telemetry.Tracer("service.dwqar"),
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockKey is the serialization key for one (organization, period) recomputation.
func LockKey(orgID uuid.UUID, period dwqar.ReportingPeriod) string {
	return fmt.Sprintf("dwqar:aggregate:%s:%s", orgID, period)
}

// Aggregate recomputes every rule compliance aggregate for the period and
// stores them with a fresh report envelope in one transaction. Nothing is
// written unless the full result set was computed. A submitted period is
// refused with INVALID_STATUS_TRANSITION.
func (s *Service) Aggregate(ctx context.Context, orgID uuid.UUID, token string) (report *dwqar.DWQARReport, err error) {
	period, err := dwqar.ParsePeriod(token)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "dwqar.Aggregate", trace.WithAttributes(
		attribute.String("organization_id", orgID.String()),
		attribute.String("period", period.String()),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	log := telemetry.WithTrace(ctx, s.logger).With(
		zap.String("organization_id", orgID.String()),
		zap.String("period", period.String()),
	)
	start := s.now()

	lease, err := s.locker.Acquire(ctx, LockKey(orgID, period), s.config.LockTTL)
	if err != nil {
		if errors.HasCode(err, errors.CodeUpsertConflict) && s.metrics != nil {
			s.metrics.RecordUpsertConflict(ctx)
		}
		log.Warn("Aggregation lock not acquired", zap.Error(err))
		return nil, err
	}
	defer func() {
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("Failed to release aggregation lock", zap.Error(rerr))
		}
	}()

	prev, err := s.repos.Reports.GetReport(ctx, orgID, period)
	switch {
	case err == nil:
		if err = prev.Recomputable(); err != nil {
			log.Info("Report already submitted, aggregation refused")
			return nil, err
		}
	case errors.HasCode(err, errors.CodeNotFound):
		prev = nil
	default:
		return nil, errors.NewInternalError("failed to load existing report").WithCause(err)
	}

	catalog, err := s.repos.Catalog.GetCatalog(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load compliance catalog").WithCause(err)
	}

	rng := period.Range()
	aggregator, rows, err := s.readSamples(ctx, orgID, rng)
	if err != nil {
		return nil, err
	}

	aggs := dwqar.CalculateAll(orgID, period, aggregator.Buckets())
	completeness := dwqar.EstimateCompleteness(dwqar.CompletenessInputs{
		ActualSamples:      aggregator.SampleCount(),
		ActualRuleCoverage: len(aggs),
		ActiveRules:        catalog.ActiveRuleCount(rng.End),
		ActiveComponents:   catalog.ActiveComponentCount(),
	}, s.config.Completeness)
	s.logGuards(ctx, log, completeness.GuardedTerms)

	report = dwqar.NewReport(orgID, period, rows, aggs, completeness, s.now().UTC())
	report.Supersede(prev)

	if err = s.repos.Aggregates.SaveAggregation(ctx, report); err != nil {
		switch {
		case errors.HasCode(err, errors.CodeUpsertConflict):
			if s.metrics != nil {
				s.metrics.RecordUpsertConflict(ctx)
			}
			return nil, err
		case errors.HasCode(err, errors.CodeInvalidStatusTransition):
			log.Info("Report submitted during aggregation, nothing written")
			return nil, err
		}
		return nil, errors.NewInternalError("failed to persist aggregation").WithCause(err)
	}

	elapsed := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.RecordAggregation(ctx, period.String(), elapsed, report.TotalSamples, len(aggs), report.Completeness)
	}
	log.Info("Aggregation completed",
		zap.Int("samples", report.TotalSamples),
		zap.Int("aggregates", len(aggs)),
		zap.Int("rules", report.TotalRules),
		zap.Float64("completeness", report.Completeness),
		zap.String("status", string(report.Status)),
		zap.Duration("duration", elapsed),
	)
	return report, nil
}

// readSamples pages through the period's samples with a keyset cursor.
func (s *Service) readSamples(ctx context.Context, orgID uuid.UUID, rng dwqar.DateRange) (*dwqar.TestAggregator, []dwqar.SampleRow, error) {
	aggregator := dwqar.NewTestAggregator()
	var (
		rows   []dwqar.SampleRow
		cursor dwqar.SampleCursor
		pages  int
	)
	for {
		page, err := s.repos.Samples.ListSamples(ctx, orgID, rng, cursor, s.config.PageSize)
		if err != nil {
			return nil, nil, errors.NewInternalError("failed to read water quality samples").WithCause(err)
		}
		pages++
		aggregator.Add(page...)
		for _, smp := range page {
			rows = append(rows, dwqar.NewSampleRow(smp))
		}
		if len(page) < s.config.PageSize {
			break
		}
		cursor = dwqar.CursorAfter(page[len(page)-1])
	}
	if rows == nil {
		rows = []dwqar.SampleRow{}
	}
	telemetry.AddEvent(trace.SpanFromContext(ctx), "samples.read",
		attribute.Int("samples", aggregator.SampleCount()),
		attribute.Int("pages", pages),
	)
	s.logger.Debug("Samples read",
		zap.String("organization_id", orgID.String()),
		zap.Int("samples", aggregator.SampleCount()),
		zap.Int("pages", pages),
	)
	return aggregator, rows, nil
}

func (s *Service) logGuards(ctx context.Context, log *zap.Logger, terms []string) {
	if len(terms) == 0 {
		return
	}
	log.Debug("DivisionGuardTriggered", zap.Strings("terms", terms))
	if s.metrics != nil {
		s.metrics.RecordDivisionGuard(ctx, terms...)
	}
}

// GetAggregates returns the persisted aggregates for a period.
func (s *Service) GetAggregates(ctx context.Context, orgID uuid.UUID, token string) ([]dwqar.RuleComplianceAggregate, error) {
	period, err := dwqar.ParsePeriod(token)
	if err != nil {
		return nil, err
	}
	aggs, err := s.repos.Aggregates.ListRuleCompliance(ctx, orgID, period)
	if err != nil {
		return nil, errors.NewInternalError("failed to list rule compliance aggregates").WithCause(err)
	}
	return aggs, nil
}

// Completeness estimates completeness from the persisted aggregates without
// re-reading samples.
func (s *Service) Completeness(ctx context.Context, orgID uuid.UUID, token string) (*dwqar.Completeness, error) {
	period, err := dwqar.ParsePeriod(token)
	if err != nil {
		return nil, err
	}
	aggs, err := s.repos.Aggregates.ListRuleCompliance(ctx, orgID, period)
	if err != nil {
		return nil, errors.NewInternalError("failed to list rule compliance aggregates").WithCause(err)
	}
	catalog, err := s.repos.Catalog.GetCatalog(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load compliance catalog").WithCause(err)
	}

	summary := dwqar.Summarize(aggs)
	c := dwqar.EstimateCompleteness(dwqar.CompletenessInputs{
		ActualSamples:      summary.TotalSamples,
		ActualRuleCoverage: summary.Groups,
		ActiveRules:        catalog.ActiveRuleCount(period.Range().End),
		ActiveComponents:   catalog.ActiveComponentCount(),
	}, s.config.Completeness)
	s.logGuards(ctx, s.logger.With(zap.String("organization_id", orgID.String())), c.GuardedTerms)
	return &c, nil
}

// Validate checks the stored report and, when it has no blocking errors,
// moves it to VALIDATED.
func (s *Service) Validate(ctx context.Context, orgID uuid.UUID, token string) (result *dwqar.ValidationResult, err error) {
	period, err := dwqar.ParsePeriod(token)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "dwqar.Validate", trace.WithAttributes(
		attribute.String("organization_id", orgID.String()),
		attribute.String("period", period.String()),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	report, err := s.repos.Reports.GetReport(ctx, orgID, period)
	if err != nil {
		return nil, err
	}
	catalog, err := s.repos.Catalog.GetCatalog(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load compliance catalog").WithCause(err)
	}

	now := s.now().UTC()
	res := dwqar.ValidateReport(report, catalog, s.config.Validation, now)
	if res.Valid {
		if err = report.MarkValidated(now); err != nil {
			return nil, err
		}
		if err = s.repos.Reports.SaveReport(ctx, report); err != nil {
			return nil, persistReportError(err)
		}
	}

	s.logger.Info("Report validated",
		zap.String("organization_id", orgID.String()),
		zap.String("period", period.String()),
		zap.Bool("valid", res.Valid),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return &res, nil
}

// Submit records the regulator submission of a VALIDATED report.
func (s *Service) Submit(ctx context.Context, orgID uuid.UUID, token, confirmation string) (*dwqar.DWQARReport, error) {
	period, err := dwqar.ParsePeriod(token)
	if err != nil {
		return nil, err
	}
	report, err := s.repos.Reports.GetReport(ctx, orgID, period)
	if err != nil {
		return nil, err
	}
	if err := report.Submit(confirmation, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repos.Reports.SaveReport(ctx, report); err != nil {
		return nil, persistReportError(err)
	}

	s.logger.Info("Report submitted",
		zap.String("organization_id", orgID.String()),
		zap.String("period", period.String()),
		zap.String("confirmation_number", confirmation),
	)
	return report, nil
}

// persistReportError keeps a lost race against a submission visible as a
// status error.
func persistReportError(err error) error {
	if errors.HasCode(err, errors.CodeInvalidStatusTransition) {
		return err
	}
	return errors.NewInternalError("failed to persist report").WithCause(err)
}

// Current reports the open annual period, its deadline and report state.
func (s *Service) Current(ctx context.Context, orgID uuid.UUID) (*CurrentStatus, error) {
	now := s.now().UTC()
	period := dwqar.CurrentAnnual(now)
	status := &CurrentStatus{Deadline: dwqar.Deadline(period, now)}

	report, err := s.repos.Reports.GetReport(ctx, orgID, period)
	switch {
	case err == nil:
		status.HasReport = true
		status.ReportStatus = report.Status
		status.Completeness = &report.Completeness
		status.GeneratedAt = &report.GeneratedAt
	case errors.HasCode(err, errors.CodeNotFound):
	default:
		return nil, errors.NewInternalError("failed to load report").WithCause(err)
	}
	return status, nil
}

// History lists the organization's reports, newest period first.
func (s *Service) History(ctx context.Context, orgID uuid.UUID) ([]*dwqar.DWQARReport, error) {
	reports, err := s.repos.Reports.ListReports(ctx, orgID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list reports").WithCause(err)
	}
	return reports, nil
}
