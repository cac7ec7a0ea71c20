package service

import (
	"context"
	"testing"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/job"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobRequest() JobRequest {
	return JobRequest{
		Make:      "Peugeot",
		Model:     "308",
		Year:      2019,
		Region:    "Bretagne",
		Fuel:      "Diesel",
		Gearbox:   "Manuelle",
		PowerBand: "90-129",
	}
}

func newTestCollectionService() (*CollectionService, *storage.MemoryJobStore, *storage.MemoryPriceStore) {
	jobs := storage.NewMemoryJobStore()
	prices := storage.NewMemoryPriceStore()
	queue := job.NewCollectionQueue(jobs, prices, job.DefaultQueueConfig())
	return NewCollectionService(queue, prices, DefaultBonusJobs, "FR"), jobs, prices
}

func TestNextCollectionJob(t *testing.T) {
	svc, jobs, _ := newTestCollectionService()
	ctx := context.Background()

	next, err := svc.NextCollectionJob(ctx, jobRequest())
	require.NoError(t, err)
	require.NotNil(t, next.Current)
	assert.True(t, next.RefreshCurrent)
	assert.Len(t, next.Bonus, 2)
	assert.Equal(t, types.PriorityOtherRegion, next.Current.Priority)
	assert.Equal(t, types.JobAssigned, next.Current.Status)
	assert.Equal(t, "FR", next.Current.Country)

	stats, err := jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Assigned)
	assert.Equal(t, 37, stats.Pending)

	done, err := svc.MarkJobComplete(ctx, next.Current.ID, true)
	require.NoError(t, err)
	assert.Equal(t, types.JobDone, done.Status)

	_, err = svc.MarkJobComplete(ctx, next.Current.ID, true)
	assert.True(t, errors.IsJobStateError(err))

	_, err = svc.MarkJobComplete(ctx, "missing", false)
	assert.True(t, errors.IsNotFound(err))

	second, err := svc.NextCollectionJob(ctx, jobRequest())
	require.NoError(t, err)
	require.NotNil(t, second.Current)
	assert.NotEqual(t, next.Current.ID, second.Current.ID)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Done)
	assert.Equal(t, 5, stats.Assigned)
}

func TestNextCollectionJobFreshCurrent(t *testing.T) {
	svc, _, prices := newTestCollectionService()
	ctx := context.Background()

	_, err := NewPriceService(prices, 0).SubmitPriceSamples(ctx, submission(14000, 15000, 16000))
	require.NoError(t, err)

	next, err := svc.NextCollectionJob(ctx, jobRequest())
	require.NoError(t, err)
	assert.False(t, next.RefreshCurrent)
}

func TestNextCollectionJobEmptyQueue(t *testing.T) {
	svc, _, _ := newTestCollectionService()
	ctx := context.Background()

	req := jobRequest()
	req.Country = "DE"
	req.Fuel, req.Gearbox = "", ""

	next, err := svc.NextCollectionJob(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, next.Current)
	assert.Len(t, next.Bonus, 1)

	for _, j := range append(next.Bonus, next.Current) {
		_, err := svc.MarkJobComplete(ctx, j.ID, true)
		require.NoError(t, err)
	}

	next, err = svc.NextCollectionJob(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, next.Current)
	assert.NotNil(t, next.Bonus)
	assert.Empty(t, next.Bonus)
}

func TestNextCollectionJobValidation(t *testing.T) {
	svc, _, _ := newTestCollectionService()

	req := jobRequest()
	req.Year = 0
	_, err := svc.NextCollectionJob(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)
}
