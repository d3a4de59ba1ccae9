package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/rentchain-properties/pkg/auth"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func ownerRequest(owner string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/properties", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	if owner == "" {
		return req
	}
	return req.WithContext(WithPrincipal(req.Context(), pkgAuth.Principal{OwnerAddress: owner}))
}

func TestRateLimitBlocksPerOwner(t *testing.T) {
	store := newFakeLimiter()
	handler := RateLimit(NewRateLimitPolicy("ledger-write", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, ownerRequest("0xaaa"))

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("expected success before limit, got %d", rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ownerRequest("0xbbb"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other owners keep their own budget, got %d", rec.Code)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeLimiter()
	handler := RateLimit(NewRateLimitPolicy("ledger-write", time.Minute, 1), store, nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), ownerRequest(""))
	if _, ok := store.counts["ledger-write:ip:1.2.3.4"]; !ok {
		t.Fatalf("expected ip scope, got %v", store.counts)
	}
}

func TestRateLimitStoreFailure(t *testing.T) {
	store := newFakeLimiter()
	store.err = errors.New("redis down")
	handler := RateLimit(NewRateLimitPolicy("ledger-write", time.Minute, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ownerRequest("0xaaa"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("off", 0, 0), newFakeLimiter(), nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, ownerRequest("0xaaa"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 9.9.9.9, 10.0.0.1")
	if got := clientIP(req); got != "9.9.9.9" {
		t.Fatalf("unexpected ip %q", got)
	}
}
