package rpcauth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateSecretLengthAndAlphabet(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	if len(secret) != secretLength {
		t.Fatalf("got length %d, want %d", len(secret), secretLength)
	}
	for _, r := range secret {
		if !strings.ContainsRune(secretAlphabet, r) {
			t.Fatalf("secret %q contains non-alphanumeric rune %q", secret, r)
		}
	}
}

func TestSignThenCheckSucceeds(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"path":"/svc"}`)
	headers, err := Sign(secret, "POST", "/manager/start", body, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	a := New(secret)
	err = a.Check("POST", "/manager/start", body, headers[HeaderNonce], headers[HeaderTimestamp], headers[HeaderMAC])
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
}

func TestCheckRejectsTamperedBody(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"path":"/svc"}`)
	headers, err := Sign(secret, "POST", "/manager/start", body, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	a := New(secret)
	err = a.Check("POST", "/manager/start", []byte(`{"path":"/evil"}`), headers[HeaderNonce], headers[HeaderTimestamp], headers[HeaderMAC])
	if err == nil {
		t.Fatal("expected Check to reject a tampered body")
	}
}

func TestCheckRejectsReplayedNonce(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte("payload")
	headers, err := Sign(secret, "GET", "/utils/info", body, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	a := New(secret)
	if err := a.Check("GET", "/utils/info", body, headers[HeaderNonce], headers[HeaderTimestamp], headers[HeaderMAC]); err != nil {
		t.Fatalf("first Check should succeed: %v", err)
	}
	if err := a.Check("GET", "/utils/info", body, headers[HeaderNonce], headers[HeaderTimestamp], headers[HeaderMAC]); err == nil {
		t.Fatal("expected Check to reject a replayed nonce")
	}
}

func TestCheckRejectsStaleTimestamp(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte("payload")
	headers, err := Sign(secret, "GET", "/utils/info", body, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	a := New(secret)
	if err := a.Check("GET", "/utils/info", body, headers[HeaderNonce], headers[HeaderTimestamp], headers[HeaderMAC]); err == nil {
		t.Fatal("expected Check to reject a stale timestamp")
	}
}

func TestMiddlewareRejectsUnauthenticatedRequest(t *testing.T) {
	a := New([]byte("test-secret"))
	called := false
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/utils/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
	if called {
		t.Fatal("handler should not have been called")
	}
}

func TestMiddlewareAllowsAuthenticatedRequest(t *testing.T) {
	secret := []byte("test-secret")
	a := New(secret)
	called := false
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	body := []byte(`{}`)
	headers, err := Sign(secret, http.MethodPost, "/manager/start", body, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/manager/start", strings.NewReader(string(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if !called {
		t.Fatal("handler should have been called")
	}
}
