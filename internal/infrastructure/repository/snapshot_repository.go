package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
)

// SnapshotRepository is the append-only store of compliance score snapshots.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const appendSnapshot = `
	INSERT INTO compliance_score_snapshots (
		id, organization_id, calculated_at, overall_score, breakdown, recommendations, trend, previous_score
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const snapshotColumns = `id, organization_id, calculated_at, overall_score, breakdown, recommendations, trend, previous_score`

const latestSnapshot = `
	SELECT ` + snapshotColumns + `
	FROM compliance_score_snapshots
	WHERE organization_id = $1
	ORDER BY calculated_at DESC, id DESC
	LIMIT 1`

const listSnapshots = `
	SELECT ` + snapshotColumns + `
	FROM compliance_score_snapshots
	WHERE organization_id = $1
	ORDER BY calculated_at DESC, id DESC
	LIMIT $2`

func (r *SnapshotRepository) AppendScoreSnapshot(ctx context.Context, s *scoring.ComplianceScoreSnapshot) error {
	breakdown, err := json.Marshal(s.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	recs, err := json.Marshal(s.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	var prev sql.NullInt64
	if s.PreviousScore != nil {
		prev = sql.NullInt64{Int64: int64(*s.PreviousScore), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, appendSnapshot,
		s.ID, s.OrganizationID, s.CalculatedAt, s.OverallScore,
		string(breakdown), string(recs), string(s.Trend), prev,
	)
	return WrapRepositoryError(err, "append score snapshot")
}

func (r *SnapshotRepository) LatestSnapshot(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error) {
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, latestSnapshot, orgID))
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.ErrSnapshotNotFound
		}
		return nil, WrapRepositoryError(err, "latest score snapshot")
	}
	return s, nil
}

func (r *SnapshotRepository) ListSnapshots(ctx context.Context, orgID uuid.UUID, limit int) ([]*scoring.ComplianceScoreSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, listSnapshots, orgID, limit)
	if err != nil {
		return nil, WrapRepositoryError(err, "list score snapshots")
	}
	defer rows.Close()

	out := []*scoring.ComplianceScoreSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, WrapRepositoryError(rows.Err(), "list score snapshots")
}

func scanSnapshot(row rowScanner) (*scoring.ComplianceScoreSnapshot, error) {
	var (
		s         scoring.ComplianceScoreSnapshot
		breakdown []byte
		recs      []byte
		trend     string
		prev      sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.OrganizationID, &s.CalculatedAt, &s.OverallScore,
		&breakdown, &recs, &trend, &prev); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &s.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	if err := json.Unmarshal(recs, &s.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if s.Recommendations == nil {
		s.Recommendations = []scoring.Recommendation{}
	}
	s.CalculatedAt = s.CalculatedAt.UTC()
	s.Trend = scoring.Trend(trend)
	if prev.Valid {
		p := int(prev.Int64)
		s.PreviousScore = &p
	}
	return &s, nil
}
