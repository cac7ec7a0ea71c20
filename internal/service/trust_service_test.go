package service

import (
	"context"
	"sync"
	"testing"

	"github.com/listing-trust/internal/engine"
	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

type fixedFilter struct {
	id  string
	out *models.FilterOutcome
	err error
}

func (f *fixedFilter) ID() string { return f.id }

func (f *fixedFilter) Run(context.Context, *models.ListingRecord) (*models.FilterOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.out
	return &out, nil
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []*models.AnalysisEvent
	err    error
}

func (r *memoryRecorder) RecordEvents(_ context.Context, events ...*models.AnalysisEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, events...)
	return nil
}

func testListing() *models.ListingRecord {
	return &models.ListingRecord{
		ID:      "ad-42",
		Make:    "Peugeot",
		Model:   "308",
		Year:    intPtr(2019),
		Price:   intPtr(14900),
		Fuel:    "diesel",
		Gearbox: "manuelle",
		PowerHP: intPtr(110),
		Region:  "Bretagne",
	}
}

func newTestTrustService(t *testing.T, recorder EventRecorder) (*TrustService, *storage.MemoryJobStore) {
	t.Helper()
	filters := []engine.AnalysisFilter{
		&fixedFilter{id: "L1", out: &models.FilterOutcome{Status: types.StatusPass, Score: 1}},
		&fixedFilter{id: "L4", out: &models.FilterOutcome{Status: types.StatusFail, Score: 0}},
		&fixedFilter{id: "L6", err: errors.NewFilterError("L6", "no phone number", nil)},
	}
	e, err := engine.NewFilterEngine(filters)
	require.NoError(t, err)

	jobs := storage.NewMemoryJobStore()
	queue := job.NewCollectionQueue(jobs, storage.NewMemoryPriceStore(), job.DefaultQueueConfig())
	return NewTrustService(e, nil, queue, recorder, "FR"), jobs
}

func TestAnalyzeListing(t *testing.T) {
	recorder := &memoryRecorder{}
	svc, jobs := newTestTrustService(t, recorder)
	ctx := context.Background()

	result, err := svc.AnalyzeListing(ctx, testListing())
	require.NoError(t, err)

	assert.Equal(t, "ad-42", result.ListingID)
	assert.Equal(t, 29, result.Trust.Score)
	assert.True(t, result.Trust.Partial)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "no phone number", result.Outcomes[2].Message)

	stats, err := jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, stats.Pending)

	require.Len(t, recorder.events, 1)
	ev := recorder.events[0]
	assert.Equal(t, "ad-42", ev.ListingID)
	assert.Equal(t, uint8(29), ev.Score)
	assert.Equal(t, int32(2019), ev.Year)
	assert.Equal(t, "FR", ev.Country)
	assert.Equal(t, []string{"L1:pass", "L4:fail", "L6:skip"}, ev.Statuses)
	assert.NotEmpty(t, ev.EventID)
}

func TestAnalyzeListingRejectsInvalid(t *testing.T) {
	recorder := &memoryRecorder{}
	svc, jobs := newTestTrustService(t, recorder)

	l := testListing()
	l.Make = ""
	_, err := svc.AnalyzeListing(context.Background(), l)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)

	stats, err := jobs.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Empty(t, recorder.events)
}

func TestAnalyzeListingSideEffectsAreBestEffort(t *testing.T) {
	recorder := &memoryRecorder{err: assert.AnError}
	svc, _ := newTestTrustService(t, recorder)

	result, err := svc.AnalyzeListing(context.Background(), testListing())
	require.NoError(t, err)
	assert.Equal(t, 29, result.Trust.Score)
}

func TestAnalyzeListingWithoutRegionSkipsExpansion(t *testing.T) {
	svc, jobs := newTestTrustService(t, nil)

	l := testListing()
	l.Region = ""
	_, err := svc.AnalyzeListing(context.Background(), l)
	require.NoError(t, err)

	stats, err := jobs.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
}
