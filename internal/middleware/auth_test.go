package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/wonderland/internal/model"
)

func issue(t *testing.T, m *AuthMiddleware, u User) string {
	t.Helper()
	token, err := m.IssueToken(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		u, ok := GetUserFromContext(r.Context())
		if !ok {
			t.Fatalf("user not in context")
		}
		if u.ID != "user-42" || u.Name != "Alice" || u.Admin() {
			t.Fatalf("user from context = %+v", u)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.SetAuthCookie(w, issue(t, m, User{ID: "user-42", Name: "Alice", Role: model.RoleUser}))
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	if resCookies[0].Name != "auth_token" || !resCookies[0].HttpOnly {
		t.Fatalf("unexpected cookie %+v", resCookies[0])
	}

	r.AddCookie(resCookies[0])

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithBearer(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	var got User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetUserFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+issue(t, m, User{ID: "admin-1", Role: model.RoleAdmin}))

	w := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !got.Admin() {
		t.Fatalf("expected admin user, got %+v", got)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	expired := NewAuthMiddleware("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }

	tests := []struct {
		name  string
		token string
	}{
		{name: "no token"},
		{name: "garbage", token: "not-a-jwt"},
		{name: "foreign signature", token: issue(t, other, User{ID: "u"})},
		{name: "expired", token: issue(t, expired, User{ID: "u"})},
		{name: "no subject", token: issue(t, m, User{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.token != "" {
				r.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.token})
			}
			w := httptest.NewRecorder()
			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestOptional(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	called := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	})

	m.Optional(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if called != 1 {
		t.Fatalf("anonymous request must pass through")
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name string
		user *User
		want int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "user", user: &User{ID: "u", Role: model.RoleUser}, want: http.StatusForbidden},
		{name: "admin", user: &User{ID: "a", Role: model.RoleAdmin}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				r = r.WithContext(WithUser(r.Context(), *tt.user))
			}
			w := httptest.NewRecorder()
			RequireAdmin(next).ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
