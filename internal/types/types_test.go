package types

import (
	"testing"
)

func TestFilterStatusValid(t *testing.T) {
	for _, s := range []FilterStatus{StatusPass, StatusWarning, StatusFail, StatusSkip, StatusNeutral} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if FilterStatus("maybe").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestJobStatusActive(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobPending, true},
		{JobAssigned, true},
		{JobDone, false},
		{JobFailed, false},
	}

	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.want {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPrecisionForSamples(t *testing.T) {
	tests := []struct {
		n    int
		want PrecisionTier
	}{
		{0, PrecisionLow},
		{3, PrecisionLow},
		{9, PrecisionLow},
		{10, PrecisionMedium},
		{19, PrecisionMedium},
		{20, PrecisionHigh},
		{250, PrecisionHigh},
	}

	for _, tt := range tests {
		if got := PrecisionForSamples(tt.n); got != tt.want {
			t.Errorf("PrecisionForSamples(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestResolverTierCrowdsourced(t *testing.T) {
	if !TierCacheExact.Crowdsourced() || !TierCacheRelaxed.Crowdsourced() {
		t.Error("cache tiers should be crowdsourced")
	}
	if TierSeed.Crowdsourced() || TierSelfEstimate.Crowdsourced() {
		t.Error("seed and self-estimate tiers are not crowdsourced")
	}
}
