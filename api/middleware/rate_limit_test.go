package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiterStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func rateLimitedHandler(t *testing.T, policy RateLimitPolicy, store *fakeLimiterStore) (http.Handler, *int) {
	t.Helper()
	served := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(policy, store, nil)(next), &served
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	handler, served := rateLimitedHandler(t, RateLimitPolicy{Limit: 2, Window: time.Minute}, store)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d status = %d, want 429", i, rec.Code)
		}
	}
	if *served != 2 {
		t.Errorf("served = %d, want 2", *served)
	}
}

func TestRateLimitScopesPerUser(t *testing.T) {
	store := &fakeLimiterStore{}
	handler, served := rateLimitedHandler(t, RateLimitPolicy{Limit: 1, Window: time.Minute}, store)

	for _, user := range []string{"user-1", "user-2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("user %s status = %d, want 200", user, rec.Code)
		}
	}
	if *served != 2 {
		t.Errorf("served = %d, want 2", *served)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler, served := rateLimitedHandler(t, RateLimitPolicy{}, &fakeLimiterStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *served != 1 {
		t.Errorf("served = %d, want 1", *served)
	}
}
