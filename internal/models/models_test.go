package models

import (
	"testing"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/types"
	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestListingValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	valid := func() ListingRecord {
		return ListingRecord{Make: "Peugeot", Model: "308", Year: intPtr(2019), Price: intPtr(14900)}
	}

	tests := []struct {
		name    string
		mutate  func(l *ListingRecord)
		wantErr bool
	}{
		{"valid", func(l *ListingRecord) {}, false},
		{"missing make", func(l *ListingRecord) { l.Make = " " }, true},
		{"missing model", func(l *ListingRecord) { l.Model = "" }, true},
		{"too old", func(l *ListingRecord) { l.Year = intPtr(1949) }, true},
		{"next model year", func(l *ListingRecord) { l.Year = intPtr(2027) }, false},
		{"future", func(l *ListingRecord) { l.Year = intPtr(2028) }, true},
		{"negative price", func(l *ListingRecord) { l.Price = intPtr(-1) }, true},
		{"negative mileage", func(l *ListingRecord) { l.Mileage = intPtr(-5) }, true},
		{"unknown seller", func(l *ListingRecord) { l.SellerType = "dealer" }, true},
		{"inverted estimate", func(l *ListingRecord) { l.SelfEstimate = &PriceBand{Low: 20000, High: 10000} }, true},
		{"no year is fine", func(l *ListingRecord) { l.Year = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid()
			tt.mutate(&l)
			err := l.Validate(now)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, errors.CategoryValidation, errors.Categorize(err).Category)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPriceBandMidpoint(t *testing.T) {
	assert.Equal(t, 18230, PriceBand{Low: 17320, High: 19140}.Midpoint())
	assert.Equal(t, 101, PriceBand{Low: 100, High: 101}.Midpoint())
}

func TestListingHelpers(t *testing.T) {
	l := ListingRecord{PowerHP: intPtr(150), Flags: map[string]bool{"urgent": true}}
	assert.Equal(t, "130-179", l.PowerBand())
	assert.Equal(t, "FR", l.CountryOr("fr"))
	l.Country = "be"
	assert.Equal(t, "BE", l.CountryOr("FR"))
	assert.True(t, l.Flag("urgent"))
	assert.False(t, l.Flag("pro"))
}

func TestPriceReference(t *testing.T) {
	now := time.Now()
	ref := &PriceReference{
		PriceStats:   PriceStats{Median: 15000, IQM: 0},
		RefreshAfter: now.Add(-time.Minute),
	}
	assert.True(t, ref.IsStale(now))
	assert.Equal(t, 15000, ref.ReferencePrice())

	ref.IQM = 14800
	ref.RefreshAfter = now.Add(time.Hour)
	assert.False(t, ref.IsStale(now))
	assert.Equal(t, 14800, ref.ReferencePrice())
}

func TestKeysNormalize(t *testing.T) {
	a := NewPriceKey("Citroën", "C3", 2018, "Île-de-France", "Gazole", "90-129", "fr")
	b := NewPriceKey("CITROEN", " c3 ", 2018, "ile de france", "diesel", "90-129", "FR")
	assert.Equal(t, a, b)
	assert.Equal(t, "citroen|c3|2018|ile de france|diesel|90-129|FR", a.String())
	assert.Equal(t, "", a.VehicleScope().Fuel)

	jk := NewJobKey("Citroën", "C3", 2018, "Île-de-France", "Gazole", "Manual", "90-129", "fr")
	assert.Equal(t, a, jk.PriceKey())
	assert.Equal(t, "manuelle", jk.Gearbox)
	assert.Equal(t, "citroen|c3|FR", jk.VehicleKey())
}

func TestCollectionJobRecyclable(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)
	cutoff := now.Add(-24 * time.Hour)

	assert.True(t, (&CollectionJob{Status: types.JobFailed, CompletedAt: &old}).Recyclable(cutoff))
	assert.True(t, (&CollectionJob{Status: types.JobDone, CompletedAt: &old}).Recyclable(cutoff))
	assert.False(t, (&CollectionJob{Status: types.JobFailed, CompletedAt: &recent}).Recyclable(cutoff))
	assert.False(t, (&CollectionJob{Status: types.JobPending}).Recyclable(cutoff))
}

func TestApplyCompletion(t *testing.T) {
	now := time.Now()
	assigned := now.Add(-time.Minute)

	tests := []struct {
		name         string
		attempts     int
		success      bool
		wantStatus   types.JobStatus
		wantAttempts int
	}{
		{"success", 1, true, types.JobDone, 1},
		{"first failure requeues", 0, false, types.JobPending, 1},
		{"max-1 requeues", 2, false, types.JobPending, 3},
		{"max fails", 3, false, types.JobFailed, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &CollectionJob{Status: types.JobAssigned, Attempts: tt.attempts, AssignedAt: &assigned}
			j.ApplyCompletion(tt.success, 3, now)
			assert.Equal(t, tt.wantStatus, j.Status)
			assert.Equal(t, tt.wantAttempts, j.Attempts)
			if tt.wantStatus == types.JobPending {
				assert.Nil(t, j.AssignedAt)
				assert.Nil(t, j.CompletedAt)
			} else {
				assert.Equal(t, &now, j.CompletedAt)
			}
		})
	}
}

func TestRecycle(t *testing.T) {
	now := time.Now()
	done := now.Add(-48 * time.Hour)
	j := &CollectionJob{Status: types.JobFailed, Attempts: 3, Priority: 4, CompletedAt: &done}
	j.Recycle(types.PriorityOtherRegion, now)

	assert.Equal(t, types.JobPending, j.Status)
	assert.Equal(t, 0, j.Attempts)
	assert.Equal(t, types.PriorityOtherRegion, j.Priority)
	assert.Nil(t, j.CompletedAt)
	assert.Equal(t, now, j.CreatedAt)
}

func TestJobStatsAdd(t *testing.T) {
	var s JobStats
	s.Add(types.JobPending, 2)
	s.Add(types.JobFailed, 1)
	s.Add("unknown", 7)
	assert.Equal(t, JobStats{Pending: 2, Failed: 1}, s)
}
