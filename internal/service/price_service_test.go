package service

import (
	"context"
	"testing"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/storage"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submission(prices ...int) *models.SampleSubmission {
	return &models.SampleSubmission{
		Make:      "Peugeot",
		Model:     "308",
		Year:      2019,
		Region:    "Bretagne",
		Fuel:      "Diesel",
		PowerBand: "90-129",
		Country:   "FR",
		Prices:    prices,
	}
}

func TestSubmitPriceSamples(t *testing.T) {
	store := storage.NewMemoryPriceStore()
	svc := NewPriceService(store, 0)
	ctx := context.Background()

	ref, err := svc.SubmitPriceSamples(ctx, submission(14000, 15000, 16000, 15500, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, 4, ref.SampleCount)
	assert.Equal(t, "peugeot", ref.Make)
	assert.Equal(t, "diesel", ref.Fuel)
	assert.Equal(t, types.PrecisionForSamples(4), ref.PrecisionTier)
	assert.True(t, ref.RefreshAfter.Sub(ref.CollectedAt) == DefaultRefreshWindow)

	again, err := svc.SubmitPriceSamples(ctx, submission(20000, 21000, 22000))
	require.NoError(t, err)
	assert.Equal(t, ref.ID, again.ID)
	assert.Equal(t, 3, again.SampleCount)
	assert.Equal(t, 21000, again.Median)

	stored, err := store.GetReference(ctx, ref.PriceKey)
	require.NoError(t, err)
	assert.Equal(t, 21000, stored.Median)
}

func TestSubmitPriceSamplesValidation(t *testing.T) {
	svc := NewPriceService(storage.NewMemoryPriceStore(), 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(s *models.SampleSubmission)
	}{
		{"too few prices", func(s *models.SampleSubmission) { s.Prices = []int{15000, 16000} }},
		{"non-positive prices do not count", func(s *models.SampleSubmission) { s.Prices = []int{15000, 0, -1, 16000} }},
		{"missing model", func(s *models.SampleSubmission) { s.Model = "" }},
		{"bad year", func(s *models.SampleSubmission) { s.Year = 0 }},
		{"missing country", func(s *models.SampleSubmission) { s.Country = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission(14000, 15000, 16000)
			tt.mutate(sub)
			_, err := svc.SubmitPriceSamples(ctx, sub)
			require.Error(t, err)
			assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)
		})
	}
}
