package middleware

import (
	"net/http"
	"strings"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/store"
)

// RequireAuth validates the bearer token and populates the actor context.
// Role flags come from the users table on every request, not from the token,
// so promotions and revocations apply immediately.
func RequireAuth(tokens *auth.TokenIssuer, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := users.GetByID(claims.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ac := auth.Context{
				UserID:           user.ID,
				Username:         user.Username,
				IsAdmin:          user.IsAdmin,
				IsDepartmentUser: user.IsDepartmentUser,
			}
			if user.Department != nil {
				ac.Department = *user.Department
			}

			ctx := auth.WithActor(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication required"}`))
}
