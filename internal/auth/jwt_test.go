package auth

import (
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	token, err := SignAccessToken(Claims{UserID: "7", Role: RoleCashier, BranchIDs: []string{"b1"}}, "secret", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := VerifyAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "7" || claims.Role != RoleCashier {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.CanAccessBranch("b1") || claims.CanAccessBranch("b2") {
		t.Fatalf("unexpected branch scope %v", claims.BranchIDs)
	}

	if _, err := VerifyAccessToken(token, "other"); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignAccessToken(Claims{UserID: "7", Role: RoleCashier}, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyAccessToken(token, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "",
		"Basic abc":   "",
		"":            "",
	}
	for header, expected := range cases {
		if got := ParseBearerToken(header); got != expected {
			t.Fatalf("%q: expected %q, got %q", header, expected, got)
		}
	}
}

func TestHasPermission(t *testing.T) {
	cases := []struct {
		role     UserRole
		perm     StaffPermission
		expected bool
	}{
		{role: RoleSuperAdmin, perm: PermResetCounters, expected: true},
		{role: RoleBranchManager, perm: PermResetCounters, expected: false},
		{role: RoleCashier, perm: PermIssueBills, expected: true},
		{role: RoleKitchen, perm: PermIssueBills, expected: false},
		{role: RoleKitchen, perm: PermKitchenFeed, expected: true},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.expected {
			t.Fatalf("%s/%s: expected %v, got %v", tc.role, tc.perm, tc.expected, got)
		}
	}
}
