package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/listing-trust/internal/config"
	"github.com/listing-trust/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*RegistryClient, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewRegistryClient(config.RegistryConfig{BaseURL: srv.URL + "/", Timeout: timeout})
	client.retry.InitialDelay = time.Millisecond
	return client, &calls
}

func TestLookupFound(t *testing.T) {
	client, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/73282932000074", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"73282932000074","name":"Garage du Centre","active":true}`))
	}, time.Second)

	company, err := client.Lookup(context.Background(), "73282932000074")
	require.NoError(t, err)
	assert.Equal(t, "Garage du Centre", company.Name)
	assert.True(t, company.Active)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestLookupNotFoundIsNotRetried(t *testing.T) {
	client, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, time.Second)

	_, err := client.Lookup(context.Background(), "12345678900001")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestLookupRetriesServerErrorOnce(t *testing.T) {
	client, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, time.Second)

	_, err := client.Lookup(context.Background(), "73282932000074")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryProvider, errors.Categorize(err).Category)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestLookupRecoversOnRetry(t *testing.T) {
	var n int32
	client, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Auto Pro","active":false}`))
	}, time.Second)

	company, err := client.Lookup(context.Background(), "73282932000074")
	require.NoError(t, err)
	assert.Equal(t, "73282932000074", company.ID)
	assert.False(t, company.Active)
}

func TestLookupTimeout(t *testing.T) {
	client, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.Lookup(context.Background(), "73282932000074")
	require.Error(t, err)
	assert.Equal(t, "PROVIDER_TIMEOUT", errors.Categorize(err).Code)
}

func TestLookupBadRequestIsNotRetried(t *testing.T) {
	client, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}, time.Second)

	_, err := client.Lookup(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryProvider, errors.Categorize(err).Category)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

// spentQuota allows the first n calls
type spentQuota struct{ left int32 }

func (q *spentQuota) Wait(context.Context) error {
	if atomic.AddInt32(&q.left, -1) < 0 {
		return errors.NewRateLimitError(30)
	}
	return nil
}

func TestLookupQuotaSpentIsNotRetried(t *testing.T) {
	client, calls := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"73282932000074","name":"Garage du Centre","active":true}`))
	}, time.Second)
	WithQuota(&spentQuota{left: 1})(client)

	_, err := client.Lookup(context.Background(), "73282932000074")
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "73282932000074")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryRateLimit, errors.Categorize(err).Category)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "closed", string(client.BreakerState()))
}
