package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestSessionAuth_TokenRoundTrip(t *testing.T) {
	auth := NewSessionAuth("test-secret")
	id := uuid.New()

	token, err := auth.IssueToken(id)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	got, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != id {
		t.Errorf("Expected session %s, got %s", id, got)
	}
}

func TestSessionAuth_TokenOutlivesIdleWindow(t *testing.T) {
	auth := NewSessionAuth("secret")
	token, err := auth.IssueToken(uuid.New())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return auth.Secret, nil
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := claims["exp"]; ok {
		t.Error("Expected no exp claim; session lifetime is tracked by the store")
	}
}

func TestSessionAuth_RejectsForeignSecret(t *testing.T) {
	token, _ := NewSessionAuth("one").IssueToken(uuid.New())

	if _, err := NewSessionAuth("two").ParseToken(token); err == nil {
		t.Error("Expected error for token signed with another secret")
	}
}

func TestSessionAuth_RejectsMissingSessionClaim(t *testing.T) {
	auth := NewSessionAuth("secret")
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x"}).SignedString(auth.Secret)

	if _, err := auth.ParseToken(token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionAuth_Middleware(t *testing.T) {
	auth := NewSessionAuth("secret")
	id := uuid.New()
	valid, _ := auth.IssueToken(id)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": id.String(),
		"exp":        time.Now().Add(-time.Minute).Unix(),
	}).SignedString(auth.Secret)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen uuid.UUID
			h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetSessionID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantCode == "" {
				if seen != id {
					t.Errorf("Expected session %s in context, got %s", id, seen)
				}
				return
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.wantCode {
				t.Errorf("Expected code %s, got %s", tc.wantCode, body.Error.Code)
			}
		})
	}
}

func TestGetSessionID_Empty(t *testing.T) {
	if id := GetSessionID(context.Background()); id != uuid.Nil {
		t.Errorf("Expected nil UUID, got %s", id)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Now()

	if !rl.Allow("a", now) || !rl.Allow("a", now) {
		t.Fatal("Expected first two requests to pass")
	}
	if rl.Allow("a", now) {
		t.Error("Expected third request to be limited")
	}
	if !rl.Allow("b", now) {
		t.Error("Expected other keys to be unaffected")
	}
	if !rl.Allow("a", now.Add(2*time.Minute)) {
		t.Error("Expected window to reset")
	}
}

func TestRateLimiter_RecoversAfterBurst(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Now()

	for i := 0; i < 5; i++ {
		rl.Allow("a", now)
	}

	// Retrying below the limit must get the client back in.
	allowed := 0
	for i := 1; i <= 10; i++ {
		if rl.Allow("a", now.Add(time.Duration(i)*50*time.Second)) {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("Expected all 10 spaced requests to pass, got %d", allowed)
	}
}

func TestRateLimiter_RejectedRequestsDoNotExtendLockout(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Now()

	rl.Allow("a", now)
	rl.Allow("a", now)
	for i := 1; i <= 20; i++ {
		rl.Allow("a", now.Add(time.Duration(i)*time.Second))
	}

	// One token refills every 30s from the burst, regardless of rejections.
	if !rl.Allow("a", now.Add(61*time.Second)) {
		t.Error("Expected a token to be available after the refill interval")
	}
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		if !rl.Allow("a", time.Now()) {
			t.Fatal("Expected no limit")
		}
	}
}

func TestRateLimiter_MiddlewareKeysBySession(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(id uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", nil)
		req = req.WithContext(context.WithValue(req.Context(), SessionIDKey, id))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	first, second := uuid.New(), uuid.New()
	if code := send(first); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := send(first); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", code)
	}
	if code := send(second); code != http.StatusOK {
		t.Errorf("Expected 200 for a different session from the same address, got %d", code)
	}
}

func TestRateLimiter_MiddlewareKeysAnonymousByHost(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	open := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
		req.RemoteAddr = remoteAddr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := open("203.0.113.7:40001"); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := open("203.0.113.7:40002"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for a new connection from the same host, got %d", code)
	}
	if code := open("198.51.100.2:40001"); code != http.StatusOK {
		t.Errorf("Expected 200 for another host, got %d", code)
	}
}

func TestRequestID(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Expected request ID on request")
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("Expected request ID on response")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("Expected incoming ID to be kept, got %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("Expected allowed origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/examples", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Expected no CORS header for other origins")
	}
}
