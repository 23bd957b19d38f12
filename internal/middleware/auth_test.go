package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hotelpos-billing-services/internal/auth"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := auth.SignAccessToken(claims, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

func branchRouter() http.Handler {
	r := chi.NewRouter()
	r.Route("/branches/{branchId}", func(r chi.Router) {
		r.Use(StaffAuth(testSecret))
		r.Use(BranchAccess("branchId"))
		r.With(RequirePermission(auth.PermIssueBills)).Post("/bill", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func TestBranchGuards(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		path     string
		expected int
	}{
		{name: "missing token", path: "/branches/b1/bill", expected: http.StatusUnauthorized},
		{name: "assigned cashier", header: signed(t, auth.Claims{UserID: "1", Role: auth.RoleCashier, BranchIDs: []string{"b1"}}), path: "/branches/b1/bill", expected: http.StatusNoContent},
		{name: "other branch", header: signed(t, auth.Claims{UserID: "1", Role: auth.RoleCashier, BranchIDs: []string{"b1"}}), path: "/branches/b2/bill", expected: http.StatusForbidden},
		{name: "kitchen cannot bill", header: signed(t, auth.Claims{UserID: "2", Role: auth.RoleKitchen, BranchIDs: []string{"b1"}}), path: "/branches/b1/bill", expected: http.StatusForbidden},
		{name: "super admin any branch", header: signed(t, auth.Claims{UserID: "3", Role: auth.RoleSuperAdmin}), path: "/branches/b9/bill", expected: http.StatusNoContent},
		{name: "unknown role", header: signed(t, auth.Claims{UserID: "4", Role: "CUSTOMER", BranchIDs: []string{"b1"}}), path: "/branches/b1/bill", expected: http.StatusForbidden},
	}

	router := branchRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, rec.Code)
			}
		})
	}
}

func TestResetPin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name     string
		hash     string
		pin      string
		expected int
	}{
		{name: "correct pin", hash: string(hash), pin: "4321", expected: http.StatusOK},
		{name: "wrong pin", hash: string(hash), pin: "0000", expected: http.StatusForbidden},
		{name: "missing pin", hash: string(hash), expected: http.StatusForbidden},
		{name: "reset disabled", hash: "", pin: "4321", expected: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/reset", nil)
			if tc.pin != "" {
				req.Header.Set("X-Reset-Pin", tc.pin)
			}
			rec := httptest.NewRecorder()
			ResetPin(tc.hash)(ok).ServeHTTP(rec, req)
			if rec.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, rec.Code)
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "corr-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "corr-1" || rec.Header().Get("X-Request-Id") != "corr-1" {
		t.Fatalf("expected correlation id to be reused, got %q / %q", seen, rec.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "bad id\nforged=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" || seen == "bad id\nforged=1" {
		t.Fatalf("expected a generated id, got %q", seen)
	}
	if len(seen) != 32 {
		t.Fatalf("expected hex id, got %q", seen)
	}
}
