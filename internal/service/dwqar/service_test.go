package dwqar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	"github.com/flowcomply/compliance-engine/internal/testutil"
	"github.com/flowcomply/compliance-engine/internal/testutil/fixtures"
)

type MockSampleReader struct{ mock.Mock }

func (m *MockSampleReader) ListSamples(ctx context.Context, orgID uuid.UUID, r dwqar.DateRange, after dwqar.SampleCursor, limit int) ([]*dwqar.WaterQualityTestSample, error) {
	args := m.Called(ctx, orgID, r, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dwqar.WaterQualityTestSample), args.Error(1)
}

type MockCatalogReader struct{ mock.Mock }

func (m *MockCatalogReader) GetCatalog(ctx context.Context, orgID uuid.UUID) (dwqar.Catalog, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(dwqar.Catalog), args.Error(1)
}

type MockAggregateRepository struct{ mock.Mock }

func (m *MockAggregateRepository) SaveAggregation(ctx context.Context, r *dwqar.DWQARReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockAggregateRepository) ListRuleCompliance(ctx context.Context, orgID uuid.UUID, period dwqar.ReportingPeriod) ([]dwqar.RuleComplianceAggregate, error) {
	args := m.Called(ctx, orgID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dwqar.RuleComplianceAggregate), args.Error(1)
}

type MockReportRepository struct{ mock.Mock }

func (m *MockReportRepository) SaveReport(ctx context.Context, r *dwqar.DWQARReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockReportRepository) GetReport(ctx context.Context, orgID uuid.UUID, period dwqar.ReportingPeriod) (*dwqar.DWQARReport, error) {
	args := m.Called(ctx, orgID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dwqar.DWQARReport), args.Error(1)
}

func (m *MockReportRepository) ListReports(ctx context.Context, orgID uuid.UUID) ([]*dwqar.DWQARReport, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dwqar.DWQARReport), args.Error(1)
}

type MockLocker struct{ mock.Mock }

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Lease), args.Error(1)
}

type MockLease struct{ mock.Mock }

func (m *MockLease) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type harness struct {
	svc     *Service
	samples *MockSampleReader
	catalog *MockCatalogReader
	aggs    *MockAggregateRepository
	reports *MockReportRepository
	locker  *MockLocker
	lease   *MockLease
}

var fixedNow = time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()
	h := &harness{
		samples: &MockSampleReader{},
		catalog: &MockCatalogReader{},
		aggs:    &MockAggregateRepository{},
		reports: &MockReportRepository{},
		locker:  &MockLocker{},
		lease:   &MockLease{},
	}
	cfg := DefaultConfig()
	cfg.PageSize = pageSize
	cfg.Completeness = dwqar.CompletenessPolicy{SamplesPerPeriod: 10}
	h.svc = NewService(zaptest.NewLogger(t), Repositories{
		Samples:    h.samples,
		Catalog:    h.catalog,
		Aggregates: h.aggs,
		Reports:    h.reports,
	}, h.locker, cfg, WithClock(testutil.FixedClock(fixedNow)))

	t.Cleanup(func() {
		h.samples.AssertExpectations(t)
		h.catalog.AssertExpectations(t)
		h.aggs.AssertExpectations(t)
		h.reports.AssertExpectations(t)
		h.locker.AssertExpectations(t)
		h.lease.AssertExpectations(t)
	})
	return h
}

func (h *harness) expectLock(orgID uuid.UUID, period string) {
	h.locker.On("Acquire", mock.Anything, LockKey(orgID, dwqar.MustParsePeriod(period)), DefaultConfig().LockTTL).
		Return(h.lease, nil).Once()
	h.lease.On("Release", mock.Anything).Return(nil).Once()
}

func TestAggregate_TenSamplesTwoFailing(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := testutil.TestContext(t)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")

	h.expectLock(orgID, "2024-Annual")
	h.catalog.On("GetCatalog", mock.Anything, orgID).
		Return(fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"}), nil)
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.SampleCursor{}, 1000).
		Return(fixtures.Samples(t, orgID, "T1.8-ecol", "TP00001", 10, 2), nil)
	h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)

	want := []dwqar.RuleComplianceAggregate{{
		OrganizationID:      orgID,
		RuleID:              "T1.8-ecol",
		ComponentID:         "TP00001",
		ReportingPeriod:     "2024-Annual",
		TotalSamples:        10,
		CompliantSamples:    8,
		NonCompliantPeriods: 2,
		Complies:            false,
		Notes:               "2 of 10 samples non-compliant",
	}}
	h.aggs.On("SaveAggregation", mock.Anything, mock.MatchedBy(func(r *dwqar.DWQARReport) bool {
		return r.Status == dwqar.ReportStatusDraft && r.TotalSamples == 10 && r.TotalRules == 1 &&
			assert.ObjectsAreEqual(want, r.ReportsData)
	})).Return(nil)

	report, err := h.svc.Aggregate(ctx, orgID, "2024-Annual")
	require.NoError(t, err)
	assert.Equal(t, want, report.ReportsData)
	assert.Len(t, report.SamplesData, 10)
	assert.Equal(t, 100.0, report.Completeness)
	assert.Equal(t, fixedNow, report.GeneratedAt)
	h.reports.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything)
}

func TestAggregate_PagesThroughSamples(t *testing.T) {
	h := newHarness(t, 2)
	ctx := testutil.TestContext(t)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Q1")
	all := fixtures.Samples(t, orgID, "T1.8-ecol", "TP00001", 5, 1)

	h.expectLock(orgID, "2024-Q1")
	h.catalog.On("GetCatalog", mock.Anything, orgID).
		Return(fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"}), nil)
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.SampleCursor{}, 2).Return(all[0:2], nil).Once()
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.CursorAfter(all[1]), 2).Return(all[2:4], nil).Once()
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.CursorAfter(all[3]), 2).Return(all[4:], nil).Once()
	h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
	h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).Return(nil)

	report, err := h.svc.Aggregate(ctx, orgID, "2024-Q1")
	require.NoError(t, err)
	require.Len(t, report.ReportsData, 1)
	assert.Equal(t, 5, report.ReportsData[0].TotalSamples)
	assert.Equal(t, 1, report.ReportsData[0].NonCompliantPeriods)
}

func TestAggregate_RerunSupersedesSameReport(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := testutil.TestContext(t)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")
	samples := fixtures.Samples(t, orgID, "T1.8-ecol", "TP00001", 4, 0)

	var saved []*dwqar.DWQARReport

	h.locker.On("Acquire", mock.Anything, mock.Anything, mock.Anything).Return(h.lease, nil).Twice()
	h.lease.On("Release", mock.Anything).Return(nil).Twice()
	h.catalog.On("GetCatalog", mock.Anything, orgID).
		Return(fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"}), nil)
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.SampleCursor{}, 1000).Return(samples, nil)
	h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = append(saved, args.Get(1).(*dwqar.DWQARReport))
		}).Return(nil)

	h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound).Once()
	first, err := h.svc.Aggregate(ctx, orgID, "2024-Annual")
	require.NoError(t, err)

	require.NoError(t, first.MarkValidated(fixedNow))
	h.reports.On("GetReport", mock.Anything, orgID, period).Return(first, nil).Once()
	second, err := h.svc.Aggregate(ctx, orgID, "2024-Annual")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, dwqar.ReportStatusDraft, second.Status)
	assert.Nil(t, second.ValidatedAt)
	require.Len(t, saved, 2)
	assert.Equal(t, saved[0].ReportsData, saved[1].ReportsData)
}

func TestAggregate_SubmittedPeriodIsFrozen(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := testutil.TestContext(t)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")

	h.locker.On("Acquire", mock.Anything, LockKey(orgID, period), mock.Anything).Return(h.lease, nil).Twice()
	h.lease.On("Release", mock.Anything).Return(nil).Twice()
	h.catalog.On("GetCatalog", mock.Anything, orgID).
		Return(fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"}), nil).Once()
	h.samples.On("ListSamples", mock.Anything, orgID, period.Range(), dwqar.SampleCursor{}, 1000).
		Return(fixtures.Samples(t, orgID, "T1.8-ecol", "TP00001", 10, 0), nil).Once()
	h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).Return(nil).Once()

	h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound).Once()
	first, err := h.svc.Aggregate(ctx, orgID, "2024-Annual")
	require.NoError(t, err)
	require.NoError(t, first.MarkValidated(fixedNow))

	h.reports.On("GetReport", mock.Anything, orgID, period).Return(first, nil)
	h.reports.On("SaveReport", mock.Anything, first).Return(nil).Once()
	submitted, err := h.svc.Submit(ctx, orgID, "2024-Annual", "CONF-1")
	require.NoError(t, err)
	require.Equal(t, dwqar.ReportStatusSubmitted, submitted.Status)
	sent := append([]dwqar.RuleComplianceAggregate(nil), submitted.ReportsData...)

	_, err = h.svc.Aggregate(ctx, orgID, "2024-Annual")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidStatusTransition))
	assert.Equal(t, 422, errors.GetStatusCode(err))

	assert.Equal(t, dwqar.ReportStatusSubmitted, first.Status)
	assert.Equal(t, "CONF-1", first.ConfirmationNumber)
	assert.Equal(t, 100.0, first.Completeness)
	assert.Equal(t, sent, first.ReportsData)
}

func TestAggregate_LockHeldElsewhere(t *testing.T) {
	h := newHarness(t, 1000)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Q3")
	key := LockKey(orgID, period)

	h.locker.On("Acquire", mock.Anything, key, mock.Anything).Return(nil, errors.NewUpsertConflictError(key))

	_, err := h.svc.Aggregate(testutil.TestContext(t), orgID, "2024-Q3")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUpsertConflict))
	assert.Equal(t, 409, errors.GetStatusCode(err))
	h.aggs.AssertNotCalled(t, "SaveAggregation", mock.Anything, mock.Anything)
	h.reports.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything)
}

func TestAggregate_Failures(t *testing.T) {
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")
	catalog := fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"})

	tests := []struct {
		name     string
		setup    func(h *harness)
		wantCode string
	}{
		{
			name: "sample read fails",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
				h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)
				h.samples.On("ListSamples", mock.Anything, orgID, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, assert.AnError)
			},
			wantCode: errors.CodeInternal,
		},
		{
			name: "catalog read fails",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
				h.catalog.On("GetCatalog", mock.Anything, orgID).Return(dwqar.Catalog{}, assert.AnError)
			},
			wantCode: errors.CodeInternal,
		},
		{
			name: "concurrent writer wins",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
				h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)
				h.samples.On("ListSamples", mock.Anything, orgID, mock.Anything, mock.Anything, mock.Anything).
					Return([]*dwqar.WaterQualityTestSample{}, nil)
				h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).
					Return(errors.NewUpsertConflictError("k"))
			},
			wantCode: errors.CodeUpsertConflict,
		},
		{
			name: "submitted while computing",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
				h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)
				h.samples.On("ListSamples", mock.Anything, orgID, mock.Anything, mock.Anything, mock.Anything).
					Return([]*dwqar.WaterQualityTestSample{}, nil)
				h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).
					Return(dwqar.SubmittedReportError(period))
			},
			wantCode: errors.CodeInvalidStatusTransition,
		},
		{
			name: "persist fails",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)
				h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)
				h.samples.On("ListSamples", mock.Anything, orgID, mock.Anything, mock.Anything, mock.Anything).
					Return([]*dwqar.WaterQualityTestSample{}, nil)
				h.aggs.On("SaveAggregation", mock.Anything, mock.Anything).Return(assert.AnError)
			},
			wantCode: errors.CodeInternal,
		},
		{
			name: "existing report unreadable",
			setup: func(h *harness) {
				h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, assert.AnError)
			},
			wantCode: errors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1000)
			h.expectLock(orgID, "2024-Annual")
			tt.setup(h)

			_, err := h.svc.Aggregate(testutil.TestContext(t), orgID, "2024-Annual")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), err.Error())
			h.reports.AssertNotCalled(t, "SaveReport", mock.Anything, mock.Anything)
		})
	}
}

func TestAggregate_InvalidPeriod(t *testing.T) {
	h := newHarness(t, 1000)

	_, err := h.svc.Aggregate(testutil.TestContext(t), uuid.New(), "2024-Q5")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidPeriodFormat))
	h.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteness_FromStoredAggregates(t *testing.T) {
	h := newHarness(t, 1000)
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Q2")

	h.aggs.On("ListRuleCompliance", mock.Anything, orgID, period).Return([]dwqar.RuleComplianceAggregate{
		{RuleID: "T1.8-ecol", ComponentID: "TP00001", TotalSamples: 10, CompliantSamples: 10, Complies: true},
		{RuleID: "T2.3-as", ComponentID: "TP00001", TotalSamples: 5, CompliantSamples: 5, Complies: true},
	}, nil)
	h.catalog.On("GetCatalog", mock.Anything, orgID).
		Return(fixtures.Catalog(orgID, []string{"T1.8-ecol", "T2.3-as"}, []string{"TP00001", "TP00002"}), nil)

	c, err := h.svc.Completeness(testutil.TestContext(t), orgID, "2024-Q2")
	require.NoError(t, err)
	assert.Equal(t, 40, c.ExpectedSamples)
	assert.Equal(t, 37.5, c.SampleCompleteness)
	assert.Equal(t, 50.0, c.RuleCompleteness)
	assert.Equal(t, 43.75, c.Overall)
}

func TestValidate(t *testing.T) {
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")
	catalog := fixtures.Catalog(orgID, []string{"T1.8-ecol"}, []string{"TP00001"})

	t.Run("valid report moves to validated", func(t *testing.T) {
		h := newHarness(t, 1000)
		report := dwqar.NewReport(orgID, period, []dwqar.SampleRow{}, []dwqar.RuleComplianceAggregate{
			{OrganizationID: orgID, RuleID: "T1.8-ecol", ComponentID: "TP00001", TotalSamples: 12, CompliantSamples: 12, Complies: true},
		}, dwqar.Completeness{Overall: 100}, fixedNow)

		h.reports.On("GetReport", mock.Anything, orgID, period).Return(report, nil)
		h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)
		h.reports.On("SaveReport", mock.Anything, mock.MatchedBy(func(r *dwqar.DWQARReport) bool {
			return r.Status == dwqar.ReportStatusValidated && r.ValidatedAt != nil
		})).Return(nil)

		res, err := h.svc.Validate(testutil.TestContext(t), orgID, "2024-Annual")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
	})

	t.Run("blocking errors leave the draft untouched", func(t *testing.T) {
		h := newHarness(t, 1000)
		report := dwqar.NewReport(orgID, period, []dwqar.SampleRow{}, []dwqar.RuleComplianceAggregate{},
			dwqar.Completeness{}, fixedNow)

		h.reports.On("GetReport", mock.Anything, orgID, period).Return(report, nil)
		h.catalog.On("GetCatalog", mock.Anything, orgID).Return(catalog, nil)

		res, err := h.svc.Validate(testutil.TestContext(t), orgID, "2024-Annual")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		require.NotEmpty(t, res.Errors)
		assert.Equal(t, dwqar.IssueNoSamples, res.Errors[0].Code)
		assert.Equal(t, dwqar.ReportStatusDraft, report.Status)
	})

	t.Run("no report yet", func(t *testing.T) {
		h := newHarness(t, 1000)
		h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)

		_, err := h.svc.Validate(testutil.TestContext(t), orgID, "2024-Annual")
		assert.Equal(t, 404, errors.GetStatusCode(err))
	})
}

func TestSubmit(t *testing.T) {
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")

	t.Run("validated report", func(t *testing.T) {
		h := newHarness(t, 1000)
		report := dwqar.NewReport(orgID, period, []dwqar.SampleRow{}, nil, dwqar.Completeness{}, fixedNow)
		require.NoError(t, report.MarkValidated(fixedNow))

		h.reports.On("GetReport", mock.Anything, orgID, period).Return(report, nil)
		h.reports.On("SaveReport", mock.Anything, report).Return(nil)

		out, err := h.svc.Submit(testutil.TestContext(t), orgID, "2024-Annual", "TH-2025-0001")
		require.NoError(t, err)
		assert.Equal(t, dwqar.ReportStatusSubmitted, out.Status)
		require.NotNil(t, out.SubmittedAt)
		assert.Equal(t, fixedNow, *out.SubmittedAt)
	})

	t.Run("draft cannot be submitted", func(t *testing.T) {
		h := newHarness(t, 1000)
		report := dwqar.NewReport(orgID, period, []dwqar.SampleRow{}, nil, dwqar.Completeness{}, fixedNow)
		h.reports.On("GetReport", mock.Anything, orgID, period).Return(report, nil)

		_, err := h.svc.Submit(testutil.TestContext(t), orgID, "2024-Annual", "TH-2025-0001")
		assert.True(t, errors.HasCode(err, errors.CodeInvalidStatusTransition))
	})
}

func TestCurrent(t *testing.T) {
	orgID := uuid.New()
	period := dwqar.MustParsePeriod("2024-Annual")

	t.Run("no report", func(t *testing.T) {
		h := newHarness(t, 1000)
		h.reports.On("GetReport", mock.Anything, orgID, period).Return(nil, errors.ErrReportNotFound)

		st, err := h.svc.Current(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.False(t, st.HasReport)
		assert.Nil(t, st.Completeness)
		assert.Equal(t, time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC), st.Deadline.DueDate)
	})

	t.Run("existing draft", func(t *testing.T) {
		h := newHarness(t, 1000)
		report := dwqar.NewReport(orgID, period, []dwqar.SampleRow{}, nil, dwqar.Completeness{Overall: 61.5}, fixedNow)
		h.reports.On("GetReport", mock.Anything, orgID, period).Return(report, nil)

		st, err := h.svc.Current(testutil.TestContext(t), orgID)
		require.NoError(t, err)
		assert.True(t, st.HasReport)
		assert.Equal(t, dwqar.ReportStatusDraft, st.ReportStatus)
		require.NotNil(t, st.Completeness)
		assert.Equal(t, 61.5, *st.Completeness)
	})
}

func TestHistory(t *testing.T) {
	h := newHarness(t, 1000)
	orgID := uuid.New()

	h.reports.On("ListReports", mock.Anything, orgID).Return(nil, assert.AnError).Once()
	_, err := h.svc.History(testutil.TestContext(t), orgID)
	assert.True(t, errors.HasCode(err, errors.CodeInternal))

	h.reports.On("ListReports", mock.Anything, orgID).Return([]*dwqar.DWQARReport{}, nil).Once()
	reports, err := h.svc.History(testutil.TestContext(t), orgID)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
