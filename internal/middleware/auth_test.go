package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/database"
	"github.com/civicdesk/civicdesk/internal/store"
)

func setupAuthTest(t *testing.T) (*auth.TokenIssuer, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return auth.NewTokenIssuer([]byte("test-secret"), "civicdesk"), store.NewUserStore(db)
}

func okHandler(t *testing.T, gotActor *auth.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Error("no actor in request context")
		}
		*gotActor = ac
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthValidToken(t *testing.T) {
	tokens, users := setupAuthTest(t)

	dept := "Sanitation"
	user, err := users.CreateDepartmentUser("deptuser", "Dept User", "dept@example.com", "hash", dept)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := tokens.Issue(user.ID, user.Username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var actor auth.Context
	handler := RequireAuth(tokens, users)(okHandler(t, &actor))

	req := httptest.NewRequest("GET", "/api/complaints", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if actor.UserID != user.ID {
		t.Errorf("actor.UserID = %d, want %d", actor.UserID, user.ID)
	}
	if !actor.IsDepartmentUser || actor.Department != dept {
		t.Errorf("actor = %+v, want department user for %s", actor, dept)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	tokens, users := setupAuthTest(t)
	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/api/complaints", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	tokens, users := setupAuthTest(t)
	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/api/complaints", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthDeletedUser(t *testing.T) {
	tokens, users := setupAuthTest(t)

	// Token for a user ID that does not exist.
	token, err := tokens.Issue(9999, "ghost")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := RequireAuth(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/api/complaints", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/admin/complaints", nil)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Context{UserID: 1, IsAdmin: true}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/admin/complaints", nil)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Context{UserID: 2}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", rec.Code)
	}
}
