package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
	"github.com/flowcomply/compliance-engine/internal/metrics"
)

// SnapshotCache keeps the latest snapshot per organization for dashboards.
type SnapshotCache interface {
	GetLatest(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, bool, error)
	SetLatest(ctx context.Context, s *scoring.ComplianceScoreSnapshot) error
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

const defaultHistoryLimit = 50

// Service calculates and records organizational compliance scores.
type Service struct {
	logger     *zap.Logger
	inputs     scoring.InputsReader
	snapshots  scoring.SnapshotRepository
	cache      SnapshotCache
	calculator *scoring.Calculator
	metrics    *metrics.Registry
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Service)

func WithMetrics(r *metrics.Registry) Option {
	return func(s *Service) { s.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the score service. cache may be nil.
func NewService(logger *zap.Logger, inputs scoring.InputsReader, snapshots scoring.SnapshotRepository, cache SnapshotCache, policy scoring.ScorePolicy, opts ...Option) *Service {
	s := &Service{
		logger:     logger.Named("scoring"),
		inputs:     inputs,
		snapshots:  snapshots,
		cache:      cache,
		calculator: scoring.NewCalculator(policy),
		tracer:     telemetry.Tracer("service.scoring"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate computes a new score for the organization, compares it with the
// previous snapshot and appends the result.
func (s *Service) Calculate(ctx context.Context, orgID uuid.UUID) (snap *scoring.ComplianceScoreSnapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "scoring.Calculate", trace.WithAttributes(
		attribute.String("organization_id", orgID.String()),
	))
	defer func() { telemetry.EndSpan(span, err) }()
	log := telemetry.WithTrace(ctx, s.logger).With(zap.String("organization_id", orgID.String()))

	now := s.now().UTC()
	policy := s.calculator.Policy()

	in, err := s.inputs.LoadScoreInputs(ctx, orgID, now, policy.Windows())
	if err != nil {
		return nil, errors.NewInternalError("failed to load score inputs").WithCause(err)
	}
	in.OrganizationID = orgID
	in.AsOf = now

	res := s.calculator.Calculate(in)
	if len(res.GuardedTerms) > 0 {
		log.Debug("DivisionGuardTriggered", zap.Strings("terms", res.GuardedTerms))
		if s.metrics != nil {
			s.metrics.RecordDivisionGuard(ctx, res.GuardedTerms...)
		}
	}

	prior, err := s.snapshots.LatestSnapshot(ctx, orgID)
	switch {
	case err == nil:
	case errors.HasCode(err, errors.CodeNotFound):
		prior = nil
	default:
		return nil, errors.NewInternalError("failed to load previous snapshot").WithCause(err)
	}

	recs := scoring.GenerateRecommendations(res.Breakdown, in, policy)
	snap = scoring.NewSnapshot(orgID, res, recs, prior, now)

	if err = s.snapshots.AppendScoreSnapshot(ctx, snap); err != nil {
		return nil, errors.NewInternalError("failed to append score snapshot").WithCause(err)
	}
	if s.cache != nil {
		if cerr := s.cache.SetLatest(ctx, snap); cerr != nil {
			log.Warn("Failed to cache score snapshot", zap.Error(cerr))
			// A stale entry would hide the new snapshot until it expires.
			if ierr := s.cache.Invalidate(ctx, orgID); ierr != nil {
				log.Warn("Failed to invalidate cached score snapshot", zap.Error(ierr))
			}
		}
	}

	if s.metrics != nil {
		severities := make([]string, len(recs))
		for i, r := range recs {
			severities[i] = string(r.Severity)
		}
		s.metrics.RecordScore(ctx, snap.OverallScore, severities)
	}
	span.SetAttributes(attribute.Int("overall_score", snap.OverallScore), attribute.String("trend", string(snap.Trend)))
	log.Info("Compliance score calculated",
		zap.Int("overall", snap.OverallScore),
		zap.String("trend", string(snap.Trend)),
		zap.Int("recommendations", len(recs)),
	)
	return snap, nil
}

// Latest returns the most recent snapshot, serving from cache when possible.
func (s *Service) Latest(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error) {
	if s.cache != nil {
		snap, ok, err := s.cache.GetLatest(ctx, orgID)
		switch {
		case err != nil:
			s.logger.Warn("Score cache read failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		case ok:
			return snap, nil
		}
	}

	snap, err := s.snapshots.LatestSnapshot(ctx, orgID)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to load latest snapshot").WithCause(err)
	}

	if s.cache != nil {
		if cerr := s.cache.SetLatest(ctx, snap); cerr != nil {
			s.logger.Warn("Failed to cache score snapshot", zap.String("organization_id", orgID.String()), zap.Error(cerr))
		}
	}
	return snap, nil
}

// History returns up to limit snapshots, newest first.
func (s *Service) History(ctx context.Context, orgID uuid.UUID, limit int) ([]*scoring.ComplianceScoreSnapshot, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	snaps, err := s.snapshots.ListSnapshots(ctx, orgID, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to list score snapshots").WithCause(err)
	}
	return snaps, nil
}
