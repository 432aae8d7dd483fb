package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ssfarm/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T) *Service {
	t.Helper()
	store := memory.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("milk-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, EnsureAdmin(context.Background(), store, " Admin@Farm.in ", string(hash)))
	return NewService(store, secret, time.Hour)
}

func TestLoginAndVerify(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	token, sess, err := svc.Login(ctx, "admin@farm.in", "milk-secret")
	require.NoError(t, err)
	assert.Equal(t, "admin@farm.in", sess.Email)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, "admin@farm.in", got.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newService(t)
	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "admin@farm.in", "nope"},
		{"unknown email", "someone@farm.in", "milk-secret"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newService(t)
	token, _, err := svc.Login(context.Background(), "admin@farm.in", "milk-secret")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(memory.New(), "another-secret-another-secret-xx", time.Hour)
	svc.now = time.Now
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("milk-secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("milk-secret")))

	_, err = HashPassword("   ")
	assert.Error(t, err)
}

func TestEnsureAdminRejectsPlainPassword(t *testing.T) {
	err := EnsureAdmin(context.Background(), memory.New(), "a@b.c", "plain")
	assert.Error(t, err)
	assert.NoError(t, EnsureAdmin(context.Background(), memory.New(), "", ""))
}

func TestMiddleware(t *testing.T) {
	svc := newService(t)
	token, _, err := svc.Login(context.Background(), "admin@farm.in", "milk-secret")
	require.NoError(t, err)

	var seen Session
	h := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		cookie     string
		wantStatus int
		wantLoc    string
	}{
		{name: "page without session", method: http.MethodGet, path: "/", headers: map[string]string{"Accept": "text/html"}, wantStatus: http.StatusSeeOther, wantLoc: "/login"},
		{name: "htmx without session", method: http.MethodGet, path: "/ui/bills", headers: map[string]string{"HX-Request": "true"}, wantStatus: http.StatusUnauthorized},
		{name: "post without session", method: http.MethodPost, path: "/payments", wantStatus: http.StatusUnauthorized},
		{name: "bad cookie", method: http.MethodGet, path: "/", cookie: "garbage", wantStatus: http.StatusSeeOther, wantLoc: "/login"},
		{name: "valid cookie", method: http.MethodGet, path: "/", cookie: token, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
	assert.Equal(t, "admin@farm.in", seen.Email)
}
