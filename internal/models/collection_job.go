package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/listing-trust/internal/types"
	"github.com/listing-trust/internal/vehicle"
)

// JobKey is the full variant tuple a collection job is unique on
type JobKey struct {
	Make      string `json:"make" db:"make"`
	Model     string `json:"model" db:"model"`
	Year      int    `json:"year" db:"year"`
	Region    string `json:"region" db:"region"`
	Fuel      string `json:"fuel" db:"fuel"`
	Gearbox   string `json:"gearbox" db:"gearbox"`
	PowerBand string `json:"powerBand" db:"power_band"`
	Country   string `json:"country" db:"country"`
}

// NewJobKey normalizes the key components
func NewJobKey(brand, model string, year int, region, fuel, gearbox, powerBand, country string) JobKey {
	return JobKey{
		Make:      vehicle.Fold(brand),
		Model:     vehicle.Fold(model),
		Year:      year,
		Region:    vehicle.Fold(region),
		Fuel:      vehicle.NormalizeFuel(fuel),
		Gearbox:   vehicle.NormalizeGearbox(gearbox),
		PowerBand: strings.TrimSpace(powerBand),
		Country:   vehicle.NormalizeCountry(country),
	}
}

func (k JobKey) String() string {
	return strings.Join([]string{
		k.Make, k.Model, strconv.Itoa(k.Year), k.Region, k.Fuel, k.Gearbox, k.PowerBand, k.Country,
	}, "|")
}

// PriceKey is the reference row a successful job feeds
func (k JobKey) PriceKey() PriceKey {
	return PriceKey{
		Make:      k.Make,
		Model:     k.Model,
		Year:      k.Year,
		Region:    k.Region,
		Fuel:      k.Fuel,
		PowerBand: k.PowerBand,
		Country:   k.Country,
	}
}

// VehicleKey groups jobs of one vehicle for the low-data breaker
func (k JobKey) VehicleKey() string {
	return k.Make + "|" + k.Model + "|" + k.Country
}

// CollectionJob is one data-collection task handed to an external worker
type CollectionJob struct {
	ID string `json:"id" db:"id"`
	JobKey
	Priority    types.JobPriority `json:"priority" db:"priority"`
	Status      types.JobStatus   `json:"status" db:"status"`
	Attempts    int               `json:"attempts" db:"attempts"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	AssignedAt  *time.Time        `json:"assignedAt,omitempty" db:"assigned_at"`
	CompletedAt *time.Time        `json:"completedAt,omitempty" db:"completed_at"`
}

// CreatePolicy bounds job creation. A done or failed job completed before
// RecycleBefore may be reused in place. A vehicle with at least FailureLimit
// failed jobs completed since FailedSince gets no new or recycled job, so the
// failures stay visible to the low-data breaker until they age out.
// FailureLimit <= 0 turns that guard off.
type CreatePolicy struct {
	RecycleBefore time.Time
	FailedSince   time.Time
	FailureLimit  int
}

// Blocks reports whether a vehicle with that many recent failures may get no
// new or recycled job
func (p CreatePolicy) Blocks(failures int) bool {
	return p.FailureLimit > 0 && failures >= p.FailureLimit
}

// Recyclable reports whether a terminal job is old enough to be reused in place
func (j *CollectionJob) Recyclable(cutoff time.Time) bool {
	if j.Status.Active() || j.CompletedAt == nil {
		return false
	}
	return j.CompletedAt.Before(cutoff)
}

// ApplyCompletion moves an active job to its next state. A failure requeues
// the job while attempts < maxAttempts, otherwise the job fails terminally.
func (j *CollectionJob) ApplyCompletion(success bool, maxAttempts int, now time.Time) {
	switch {
	case success:
		j.Status = types.JobDone
		j.CompletedAt = &now
	case j.Attempts < maxAttempts:
		j.Attempts++
		j.Status = types.JobPending
		j.AssignedAt = nil
	default:
		j.Status = types.JobFailed
		j.CompletedAt = &now
	}
}

// Recycle resets a terminal job in place for a new expansion
func (j *CollectionJob) Recycle(priority types.JobPriority, now time.Time) {
	j.Priority = priority
	j.Status = types.JobPending
	j.Attempts = 0
	j.CreatedAt = now
	j.AssignedAt = nil
	j.CompletedAt = nil
}

// JobStats counts jobs per status
type JobStats struct {
	Pending  int `json:"pending"`
	Assigned int `json:"assigned"`
	Done     int `json:"done"`
	Failed   int `json:"failed"`
}

// Add increments the counter for status
func (s *JobStats) Add(status types.JobStatus, n int) {
	switch status {
	case types.JobPending:
		s.Pending += n
	case types.JobAssigned:
		s.Assigned += n
	case types.JobDone:
		s.Done += n
	case types.JobFailed:
		s.Failed += n
	}
}
