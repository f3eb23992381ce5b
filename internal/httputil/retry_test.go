package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retryable func(int) bool) RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		Retryable:     retryable,
	}
}

func sequence(codes ...int) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n >= len(codes) {
			n = len(codes) - 1
		}
		w.WriteHeader(codes[n])
	}))
	return srv, &hits
}

func TestGetRetriesUntilSuccess(t *testing.T) {
	srv, hits := sequence(http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK)
	defer srv.Close()

	resp, err := Get(context.Background(), srv.Client(), srv.URL, fastConfig(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetExhaustsRetries(t *testing.T) {
	srv, hits := sequence(http.StatusServiceUnavailable)
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, fastConfig(nil))
	var rse *RetryableStatusError
	require.True(t, errors.As(err, &rse))
	assert.Equal(t, http.StatusServiceUnavailable, rse.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetReturnsBadGatewayImmediately(t *testing.T) {
	srv, hits := sequence(http.StatusBadGateway)
	defer srv.Close()

	resp, err := Get(context.Background(), srv.Client(), srv.URL, fastConfig(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetStopsOnCancelledContext(t *testing.T) {
	srv, _ := sequence(http.StatusServiceUnavailable)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(nil)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := Get(ctx, srv.Client(), srv.URL, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransientStatus(t *testing.T) {
	assert.True(t, TransientStatus(http.StatusServiceUnavailable))
	assert.True(t, TransientStatus(http.StatusTooManyRequests))
	assert.False(t, TransientStatus(http.StatusInternalServerError))
	assert.False(t, TransientStatus(http.StatusBadGateway))
	assert.False(t, TransientStatus(http.StatusOK))
}

func TestApplyJitterBounds(t *testing.T) {
	d := 100 * time.Millisecond
	assert.Equal(t, d, applyJitter(d, 0))
	for i := 0; i < 100; i++ {
		got := applyJitter(d, 0.3)
		assert.GreaterOrEqual(t, got, 70*time.Millisecond)
		assert.LessOrEqual(t, got, 130*time.Millisecond)
	}
}

func TestGetCustomPredicate(t *testing.T) {
	srv, hits := sequence(http.StatusBadGateway, http.StatusOK)
	defer srv.Close()

	resp, err := Get(context.Background(), srv.Client(), srv.URL, fastConfig(func(code int) bool {
		return code == http.StatusBadGateway
	}))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}
