package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtracker/wtracker/internal/middleware"
)

type testRateLimiter struct {
	allowed    int
	lastKey    string
	lastLimit  redis_rate.Limit
	retryAfter time.Duration
}

func (l *testRateLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.lastKey = key
	l.lastLimit = limit
	return &redis_rate.Result{
		Allowed:    l.allowed,
		RetryAfter: l.retryAfter,
	}, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &testRateLimiter{allowed: 1}
	var nextCalled bool
	handler := middleware.RateLimit(limiter, "session-start", 5)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}),
	)

	req, err := http.NewRequest("POST", "/session/workout/3/start", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, nextCalled)
	assert.Equal(t, "session-start", limiter.lastKey)
	assert.Equal(t, redis_rate.PerMinute(5), limiter.lastLimit)

	limiter.allowed = 0
	limiter.retryAfter = 30 * time.Second
	nextCalled = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooEarly, rec.Code)
	assert.False(t, nextCalled)
	assert.Contains(t, rec.Body.String(), "retry after")
}
