package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/service"
	"habibdukan/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected configured origin, got %q", got)
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Fatalf("expected DELETE in allowed methods, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "owner", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}

	// Another client is not affected.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.2:5000"
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a different client, got %d", res.Code)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	owner := loginAsOwner(t, api)

	withoutCSRF := session{token: owner.token}
	res := withoutCSRF.do(t, api, http.MethodPost, "/api/v1/expenses", map[string]any{"amount": 10})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", res.Code)
	}

	forged := session{token: owner.token, csrf: strings.Repeat("0", 64)}
	res = forged.do(t, api, http.MethodDelete, "/api/v1/products/prd_seed_001", nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with forged csrf token, got %d", res.Code)
	}

	res = withoutCSRF.do(t, api, http.MethodGet, "/api/v1/products/prd_seed_001", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected reads to skip csrf, got %d", res.Code)
	}
}

func TestCSRFTokenValidity(t *testing.T) {
	api := newTestAPI(t)

	current := fetchCSRFToken(t, api)
	if !api.validateCSRFToken(current) {
		t.Fatalf("expected current token to validate")
	}

	hour := time.Now().UTC().Truncate(time.Hour).Unix()
	if !api.validateCSRFToken(api.csrfTokenForHour(hour - 3600)) {
		t.Fatalf("expected previous hour token to validate")
	}
	if api.validateCSRFToken(api.csrfTokenForHour(hour - 2*3600)) {
		t.Fatalf("expected token older than one hour to be rejected")
	}

	other := newTestAPI(t)
	if other.validateCSRFToken(current) {
		t.Fatalf("expected token from another process secret to be rejected")
	}
	if api.validateCSRFToken("") {
		t.Fatalf("expected empty token to be rejected")
	}
}

func TestWriteErrorMasksServerErrors(t *testing.T) {
	res := httptest.NewRecorder()
	writeError(res, http.StatusInternalServerError, errors.New("pq: connection refused on 10.0.0.5"))

	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected masked message, got %q", body["error"])
	}

	res = httptest.NewRecorder()
	writeError(res, http.StatusBadRequest, errors.New("no items provided"))
	if !strings.Contains(res.Body.String(), "no items provided") {
		t.Fatalf("expected client error message to be kept, got %s", res.Body.String())
	}
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrEmptyCart, http.StatusBadRequest},
		{fmt.Errorf("%w: prd_x", service.ErrProductNotFound), http.StatusBadRequest},
		{&store.InsufficientStockError{Name: "Sugar 1kg", Requested: 3, Available: 1}, http.StatusBadRequest},
		{&store.DuplicateKeyError{Field: "name"}, http.StatusBadRequest},
		{fmt.Errorf("%w: bad", service.ErrInvalidDateRange), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestClientKeyStripsPort(t *testing.T) {
	cases := map[string]string{
		"203.0.113.7:4000": "203.0.113.7",
		"[::1]:8080":       "::1",
		"":                 "unknown",
		"bare-host":        "bare-host",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := clientKey(req); got != want {
			t.Fatalf("clientKey(%q) = %q, want %q", remote, got, want)
		}
	}
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	tok := payload["csrfToken"]
	if strings.TrimSpace(tok) == "" {
		t.Fatalf("expected non-empty csrfToken in response")
	}
	return tok
}
