// Package engine runs the analysis filters of a listing concurrently and
// folds their outcomes into a trust score.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/listing-trust/internal/errors"
	"github.com/listing-trust/internal/logging"
	"github.com/listing-trust/internal/metrics"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/types"
)

const (
	// DefaultMaxWorkers caps the filter worker pool
	DefaultMaxWorkers = 8
	// DefaultFilterTimeout bounds a single filter run
	DefaultFilterTimeout = 10 * time.Second

	// GenericFailureMessage is shown for failures whose cause stays internal
	GenericFailureMessage = "filter failed unexpectedly"
)

// Error kinds recorded in details.error_kind of a skipped outcome
const (
	ErrorKindFilter     = "filter"
	ErrorKindUnexpected = "unexpected"
	ErrorKindPanic      = "panic"
	ErrorKindTimeout    = "timeout"
	ErrorKindCancelled  = "cancelled"
)

// AnalysisFilter is one independent check over a listing. A filter returns
// a *errors.FilterError for known failures; anything else is unexpected.
type AnalysisFilter interface {
	ID() string
	Run(ctx context.Context, listing *models.ListingRecord) (*models.FilterOutcome, error)
}

// Option customizes a FilterEngine
type Option func(*FilterEngine)

// WithMaxWorkers sets the worker pool cap
func WithMaxWorkers(n int) Option {
	return func(e *FilterEngine) {
		if n > 0 {
			e.maxWorkers = n
		}
	}
}

// WithFilterTimeout sets the per-filter timeout
func WithFilterTimeout(d time.Duration) Option {
	return func(e *FilterEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// FilterEngine runs every registered filter once per listing
type FilterEngine struct {
	filters    []AnalysisFilter
	maxWorkers int
	timeout    time.Duration
	logger     *logging.Logger
}

// NewFilterEngine registers filters. Filter ids must be non-empty and unique.
func NewFilterEngine(filters []AnalysisFilter, opts ...Option) (*FilterEngine, error) {
	seen := make(map[string]bool, len(filters))
	for _, f := range filters {
		id := f.ID()
		if strings.TrimSpace(id) == "" {
			return nil, errors.NewValidationError("filter", "filter id is empty")
		}
		if seen[id] {
			return nil, errors.NewValidationError("filter", fmt.Sprintf("duplicate filter id %q", id))
		}
		seen[id] = true
	}

	e := &FilterEngine{
		filters:    append([]AnalysisFilter(nil), filters...),
		maxWorkers: DefaultMaxWorkers,
		timeout:    DefaultFilterTimeout,
		logger:     logging.GetGlobalLogger().WithComponent("filter-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// FilterIDs returns the registered ids in outcome order
func (e *FilterEngine) FilterIDs() []string {
	ids := make([]string, 0, len(e.filters))
	for _, f := range e.filters {
		ids = append(ids, f.ID())
	}
	sort.Strings(ids)
	return ids
}

// RunAll returns exactly one outcome per registered filter, sorted by
// filter id. Failures of any kind become skip outcomes; RunAll never fails.
func (e *FilterEngine) RunAll(ctx context.Context, listing *models.ListingRecord) []*models.FilterOutcome {
	outcomes := make([]*models.FilterOutcome, len(e.filters))
	if len(e.filters) == 0 {
		return outcomes
	}

	workers := len(e.filters)
	if workers > e.maxWorkers {
		workers = e.maxWorkers
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, f := range e.filters {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f AnalysisFilter) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = e.runOne(ctx, f, listing)
		}(i, f)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].FilterID < outcomes[j].FilterID
	})
	return outcomes
}

type runResult struct {
	outcome  *models.FilterOutcome
	err      error
	panicked interface{}
}

// runOne runs f in its own goroutine so a filter that ignores its context
// is abandoned at the deadline instead of holding the run
func (e *FilterEngine) runOne(ctx context.Context, f AnalysisFilter, listing *models.ListingRecord) *models.FilterOutcome {
	id := f.ID()
	start := time.Now()

	fctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{panicked: r}
			}
		}()
		out, err := f.Run(fctx, listing)
		done <- runResult{outcome: out, err: err}
	}()

	var outcome *models.FilterOutcome
	select {
	case r := <-done:
		outcome = e.settle(fctx, id, r)
	case <-fctx.Done():
		outcome = e.abandon(id, fctx.Err())
	}

	metrics.FilterDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	metrics.FilterOutcomes.WithLabelValues(id, string(outcome.Status)).Inc()
	return outcome
}

func (e *FilterEngine) settle(fctx context.Context, id string, r runResult) *models.FilterOutcome {
	logger := e.logger.WithField("filter", id)

	if r.panicked != nil {
		logger.WithField("panic", fmt.Sprint(r.panicked)).Error("Filter panicked")
		return failure(id, GenericFailureMessage, ErrorKindPanic)
	}

	if r.err != nil {
		var fe *errors.FilterError
		if errors.As(r.err, &fe) {
			logger.WithError(r.err).Debug("Filter reported a known failure")
			return failure(id, fe.Message, ErrorKindFilter)
		}
		if fctx.Err() != nil && errors.Is(r.err, fctx.Err()) {
			return e.abandon(id, fctx.Err())
		}
		logger.WithError(r.err).Warn("Filter failed unexpectedly")
		return failure(id, GenericFailureMessage, ErrorKindUnexpected)
	}

	if r.outcome == nil || !r.outcome.Status.Valid() {
		logger.Warn("Filter returned no valid outcome")
		return failure(id, GenericFailureMessage, ErrorKindUnexpected)
	}

	out := *r.outcome
	out.FilterID = id
	out.Score = clampUnit(out.Score)
	if out.Status == types.StatusSkip {
		out.Score = 0
	}
	return &out
}

func (e *FilterEngine) abandon(id string, cause error) *models.FilterOutcome {
	kind := ErrorKindTimeout
	if errors.Is(cause, context.Canceled) {
		kind = ErrorKindCancelled
	}
	e.logger.WithField("filter", id).WithField("timeout", e.timeout.String()).Warnf("Filter abandoned: %s", kind)
	return failure(id, GenericFailureMessage, kind)
}

func failure(id, message, kind string) *models.FilterOutcome {
	metrics.FilterFailures.WithLabelValues(id, kind).Inc()
	return &models.FilterOutcome{
		FilterID: id,
		Status:   types.StatusSkip,
		Score:    0,
		Message:  message,
		Details:  map[string]interface{}{"error_kind": kind},
	}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
