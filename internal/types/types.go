// Package types provides common type definitions for the listing trust scorer.
package types

// FilterStatus is the verdict of a single analysis filter
type FilterStatus string

const (
	// StatusPass means the check found nothing suspicious
	StatusPass FilterStatus = "pass"
	// StatusWarning means the check found something worth a second look
	StatusWarning FilterStatus = "warning"
	// StatusFail means the check found a strong negative signal
	StatusFail FilterStatus = "fail"
	// StatusSkip means the check could not run (missing data or failure)
	StatusSkip FilterStatus = "skip"
	// StatusNeutral means the check does not apply to this listing
	StatusNeutral FilterStatus = "neutral"
)

// Valid reports whether s is a known filter status
func (s FilterStatus) Valid() bool {
	switch s {
	case StatusPass, StatusWarning, StatusFail, StatusSkip, StatusNeutral:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a collection job
type JobStatus string

const (
	// JobPending represents a job waiting to be picked by a worker
	JobPending JobStatus = "pending"
	// JobAssigned represents a job handed to an external worker
	JobAssigned JobStatus = "assigned"
	// JobDone represents a successfully completed job
	JobDone JobStatus = "done"
	// JobFailed represents a terminally failed or cancelled job
	JobFailed JobStatus = "failed"
)

// Active reports whether the job can still be picked or completed
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobAssigned
}

// JobPriority orders collection jobs; lower values are picked first
type JobPriority int

const (
	// PriorityOtherRegion is the same vehicle in another region
	PriorityOtherRegion JobPriority = 1
	// PriorityFuelVariant is the opposite fuel type
	PriorityFuelVariant JobPriority = 2
	// PriorityGearboxVariant is the opposite gearbox
	PriorityGearboxVariant JobPriority = 3
	// PriorityAdjacentYear is the same vehicle one year apart
	PriorityAdjacentYear JobPriority = 4
)

// ResolverTier identifies the fallback stage that answered a price lookup
type ResolverTier string

const (
	// TierCacheExact is a crowdsourced reference with matching fuel and power band
	TierCacheExact ResolverTier = "cache_exact"
	// TierCacheRelaxed is a crowdsourced reference with relaxed fuel/power band
	TierCacheRelaxed ResolverTier = "cache_relaxed"
	// TierSeed is the static seed band
	TierSeed ResolverTier = "seed"
	// TierSelfEstimate is the platform-provided estimate
	TierSelfEstimate ResolverTier = "self_estimate"
)

// Crowdsourced reports whether the tier came from the price cache
func (t ResolverTier) Crowdsourced() bool {
	return t == TierCacheExact || t == TierCacheRelaxed
}

// PrecisionTier grades a price reference by its sample count
type PrecisionTier string

const (
	PrecisionLow    PrecisionTier = "low"
	PrecisionMedium PrecisionTier = "medium"
	PrecisionHigh   PrecisionTier = "high"
)

// PrecisionForSamples maps a sample count to its precision tier
func PrecisionForSamples(n int) PrecisionTier {
	switch {
	case n >= 20:
		return PrecisionHigh
	case n >= 10:
		return PrecisionMedium
	default:
		return PrecisionLow
	}
}

// SellerType distinguishes private sellers from professionals
type SellerType string

const (
	SellerPrivate SellerType = "private"
	SellerPro     SellerType = "pro"
)

// Country is an ISO 3166-1 alpha-2 code of a supported market
type Country string

const (
	CountryFR Country = "FR"
	CountryBE Country = "BE"
	CountryCH Country = "CH"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
