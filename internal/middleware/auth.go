package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"hotelpos-billing-services/internal/auth"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID    string
	Role      auth.UserRole
	Email     string
	BranchIDs []string
	claims    *auth.Claims
}

// Actor names the caller in audit records.
func (a *AuthContext) Actor() string {
	if a == nil {
		return ""
	}
	if a.Email != "" {
		return a.Email
	}
	return "user:" + a.UserID
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth verifies the bearer token and stores the caller in the request
// context.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			switch claims.Role {
			case auth.RoleSuperAdmin, auth.RoleBranchManager, auth.RoleCashier, auth.RoleKitchen:
			default:
				writeAuthError(w, http.StatusForbidden, "Staff access required")
				return
			}

			authCtx := &AuthContext{
				UserID:    claims.UserID,
				Role:      claims.Role,
				Email:     claims.Email,
				BranchIDs: claims.BranchIDs,
				claims:    claims,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// BranchAccess rejects callers that are not assigned to the {branchId} in
// the route.
func BranchAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := GetAuthContext(r.Context())
			if !ok || authCtx.claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if !authCtx.claims.CanAccessBranch(chi.URLParam(r, param)) {
				writeAuthError(w, http.StatusForbidden, "You do not have access to this branch")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequirePermission(perm auth.StaffPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := GetAuthContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if !auth.HasPermission(authCtx.Role, perm) {
				writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResetPin guards destructive counter operations with a bcrypt-hashed PIN
// sent in the X-Reset-Pin header.
func ResetPin(pinHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash := strings.TrimSpace(pinHash)
			if hash == "" {
				writeAuthError(w, http.StatusForbidden, "Counter reset is disabled")
				return
			}
			pin := strings.TrimSpace(r.Header.Get("X-Reset-Pin"))
			if pin == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
				writeAuthError(w, http.StatusForbidden, "Invalid reset PIN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
