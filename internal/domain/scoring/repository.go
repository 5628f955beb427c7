package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SnapshotRepository stores score snapshots. Snapshots are never updated.
type SnapshotRepository interface {
	AppendScoreSnapshot(ctx context.Context, s *ComplianceScoreSnapshot) error

	// LatestSnapshot returns the most recent snapshot, or errors.ErrSnapshotNotFound.
	LatestSnapshot(ctx context.Context, orgID uuid.UUID) (*ComplianceScoreSnapshot, error)

	// ListSnapshots returns up to limit snapshots, newest first.
	ListSnapshots(ctx context.Context, orgID uuid.UUID, limit int) ([]*ComplianceScoreSnapshot, error)
}

// InputWindows bounds the time-filtered counts loaded for scoring.
type InputWindows struct {
	Inspection time.Duration
	Incident   time.Duration
	Reporting  time.Duration
}

func (p ScorePolicy) Windows() InputWindows {
	return InputWindows{
		Inspection: p.InspectionWindow,
		Incident:   p.IncidentWindow,
		Reporting:  365 * day,
	}
}

// InputsReader loads organizational counts for scoring.
type InputsReader interface {
	LoadScoreInputs(ctx context.Context, orgID uuid.UUID, asOf time.Time, w InputWindows) (ScoreInputs, error)
}
