package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
	"github.com/flowcomply/compliance-engine/internal/testutil"
)

type MockInputsReader struct{ mock.Mock }

func (m *MockInputsReader) LoadScoreInputs(ctx context.Context, orgID uuid.UUID, asOf time.Time, w scoring.InputWindows) (scoring.ScoreInputs, error) {
	args := m.Called(ctx, orgID, asOf, w)
	return args.Get(0).(scoring.ScoreInputs), args.Error(1)
}

type MockSnapshotRepository struct{ mock.Mock }

func (m *MockSnapshotRepository) AppendScoreSnapshot(ctx context.Context, s *scoring.ComplianceScoreSnapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSnapshotRepository) LatestSnapshot(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoring.ComplianceScoreSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) ListSnapshots(ctx context.Context, orgID uuid.UUID, limit int) ([]*scoring.ComplianceScoreSnapshot, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*scoring.ComplianceScoreSnapshot), args.Error(1)
}

type MockSnapshotCache struct{ mock.Mock }

func (m *MockSnapshotCache) GetLatest(ctx context.Context, orgID uuid.UUID) (*scoring.ComplianceScoreSnapshot, bool, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*scoring.ComplianceScoreSnapshot), args.Bool(1), args.Error(2)
}

func (m *MockSnapshotCache) SetLatest(ctx context.Context, s *scoring.ComplianceScoreSnapshot) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSnapshotCache) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	return m.Called(ctx, orgID).Error(0)
}

var now = time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, cache SnapshotCache) (*Service, *MockInputsReader, *MockSnapshotRepository) {
	t.Helper()
	inputs := &MockInputsReader{}
	snaps := &MockSnapshotRepository{}
	t.Cleanup(func() {
		inputs.AssertExpectations(t)
		snaps.AssertExpectations(t)
	})
	svc := NewService(zaptest.NewLogger(t), inputs, snaps, cache, scoring.DefaultScorePolicy(),
		WithClock(testutil.FixedClock(now)))
	return svc, inputs, snaps
}

func TestCalculate(t *testing.T) {
	orgID := uuid.New()
	windows := scoring.DefaultScorePolicy().Windows()

	t.Run("first snapshot has unknown trend", func(t *testing.T) {
		cache := &MockSnapshotCache{}
		svc, inputs, snaps := newTestService(t, cache)

		inputs.On("LoadScoreInputs", mock.Anything, orgID, now, windows).Return(scoring.ScoreInputs{}, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(nil, errors.ErrSnapshotNotFound)
		snaps.On("AppendScoreSnapshot", mock.Anything, mock.AnythingOfType("*scoring.ComplianceScoreSnapshot")).Return(nil)
		cache.On("SetLatest", mock.Anything, mock.Anything).Return(nil)

		snap, err := svc.Calculate(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.Equal(t, 5, snap.OverallScore)
		assert.Equal(t, scoring.TrendUnknown, snap.Trend)
		assert.Nil(t, snap.PreviousScore)
		assert.Equal(t, orgID, snap.OrganizationID)
		assert.Equal(t, now, snap.CalculatedAt)
		assert.Len(t, snap.Breakdown, 6)
		assert.NotEmpty(t, snap.Recommendations)
		cache.AssertExpectations(t)
	})

	t.Run("compares against prior snapshot", func(t *testing.T) {
		svc, inputs, snaps := newTestService(t, nil)
		prior := &scoring.ComplianceScoreSnapshot{ID: uuid.New(), OrganizationID: orgID, OverallScore: 70}

		inputs.On("LoadScoreInputs", mock.Anything, orgID, now, windows).Return(scoring.ScoreInputs{}, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(prior, nil)
		snaps.On("AppendScoreSnapshot", mock.Anything, mock.Anything).Return(nil)

		snap, err := svc.Calculate(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.Equal(t, scoring.TrendDeclining, snap.Trend)
		require.NotNil(t, snap.PreviousScore)
		assert.Equal(t, 70, *snap.PreviousScore)
		assert.NotEqual(t, prior.ID, snap.ID)
	})

	t.Run("cache write failure does not fail the calculation", func(t *testing.T) {
		cache := &MockSnapshotCache{}
		svc, inputs, snaps := newTestService(t, cache)

		inputs.On("LoadScoreInputs", mock.Anything, orgID, now, windows).Return(scoring.ScoreInputs{}, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(nil, errors.ErrSnapshotNotFound)
		snaps.On("AppendScoreSnapshot", mock.Anything, mock.Anything).Return(nil)
		cache.On("SetLatest", mock.Anything, mock.Anything).Return(assert.AnError)
		cache.On("Invalidate", mock.Anything, orgID).Return(nil)

		_, err := svc.Calculate(testutil.TestContext(t), orgID)
		assert.NoError(t, err)
		cache.AssertExpectations(t)
	})

	t.Run("input load failure", func(t *testing.T) {
		svc, inputs, snaps := newTestService(t, nil)
		inputs.On("LoadScoreInputs", mock.Anything, orgID, now, windows).Return(scoring.ScoreInputs{}, assert.AnError)

		_, err := svc.Calculate(testutil.TestContext(t), orgID)
		assert.True(t, errors.HasCode(err, errors.CodeInternal))
		snaps.AssertNotCalled(t, "AppendScoreSnapshot", mock.Anything, mock.Anything)
	})

	t.Run("append failure", func(t *testing.T) {
		svc, inputs, snaps := newTestService(t, nil)
		inputs.On("LoadScoreInputs", mock.Anything, orgID, now, windows).Return(scoring.ScoreInputs{}, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(nil, errors.ErrSnapshotNotFound)
		snaps.On("AppendScoreSnapshot", mock.Anything, mock.Anything).Return(assert.AnError)

		_, err := svc.Calculate(testutil.TestContext(t), orgID)
		assert.True(t, errors.HasCode(err, errors.CodeInternal))
	})
}

func TestLatest(t *testing.T) {
	orgID := uuid.New()
	stored := &scoring.ComplianceScoreSnapshot{ID: uuid.New(), OrganizationID: orgID, OverallScore: 81}

	t.Run("cache hit", func(t *testing.T) {
		cache := &MockSnapshotCache{}
		svc, _, snaps := newTestService(t, cache)
		cache.On("GetLatest", mock.Anything, orgID).Return(stored, true, nil)

		got, err := svc.Latest(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		snaps.AssertNotCalled(t, "LatestSnapshot", mock.Anything, mock.Anything)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		cache := &MockSnapshotCache{}
		svc, _, snaps := newTestService(t, cache)
		cache.On("GetLatest", mock.Anything, orgID).Return(nil, false, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(stored, nil)
		cache.On("SetLatest", mock.Anything, stored).Return(nil)

		got, err := svc.Latest(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.Equal(t, 81, got.OverallScore)
		cache.AssertExpectations(t)
	})

	t.Run("cache error falls back to store", func(t *testing.T) {
		cache := &MockSnapshotCache{}
		svc, _, snaps := newTestService(t, cache)
		cache.On("GetLatest", mock.Anything, orgID).Return(nil, false, assert.AnError)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(stored, nil)
		cache.On("SetLatest", mock.Anything, stored).Return(nil)

		got, err := svc.Latest(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
	})

	t.Run("never scored", func(t *testing.T) {
		svc, _, snaps := newTestService(t, nil)
		snaps.On("LatestSnapshot", mock.Anything, orgID).Return(nil, errors.ErrSnapshotNotFound)

		_, err := svc.Latest(testutil.TestContext(t), orgID)
		assert.ErrorIs(t, err, errors.ErrSnapshotNotFound)
		assert.Equal(t, 404, errors.GetStatusCode(err))
	})
}

func TestHistory(t *testing.T) {
	orgID := uuid.New()

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"explicit limit", 10, 10},
		{"zero uses default", 0, defaultHistoryLimit},
		{"negative uses default", -3, defaultHistoryLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, snaps := newTestService(t, nil)
			snaps.On("ListSnapshots", mock.Anything, orgID, tt.want).Return([]*scoring.ComplianceScoreSnapshot{}, nil)

			out, err := svc.History(testutil.TestContext(t), orgID, tt.limit)
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}
