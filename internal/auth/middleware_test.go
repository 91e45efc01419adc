package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-insurance/portal/internal/shared"
)

func tokenWithExp(t *testing.T, exp time.Time, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "staff",
		"role": role,
		"exp":  exp.Unix(),
	}).SignedString([]byte("x"))
	require.NoError(t, err)
	return token
}

func newSession() *shared.Session {
	// A zero Session behaves as an empty one for Set/Get.
	return &shared.Session{ID: "s1"}
}

func TestInitReadsTokenClaims(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	sess := newSession()
	sc := Init(sess, tokenWithExp(t, exp, "staff"), "", "staff")

	assert.Equal(t, "staff", sc.Role)
	assert.True(t, sc.ExpiresAt.Equal(exp))

	restored, ok := Restore(sess)
	require.True(t, ok)
	assert.Equal(t, sc.Token, restored.Token)
	assert.True(t, restored.ExpiresAt.Equal(exp))
	assert.Equal(t, "staff", sess.User())
}

func TestInitAcceptsOpaqueToken(t *testing.T) {
	sess := newSession()
	sc := Init(sess, "opaque-token", "admin", "root")
	assert.True(t, sc.ExpiresAt.IsZero())
	assert.False(t, sc.Expired(time.Now()))
	assert.True(t, sc.IsAdmin())
}

func TestClearRemovesCredentials(t *testing.T) {
	sess := newSession()
	Init(sess, "opaque", "admin", "root")
	Clear(sess)
	_, ok := Restore(sess)
	assert.False(t, ok)
	assert.Equal(t, "", sess.User())
}

func TestLoadClearsExpiredToken(t *testing.T) {
	sess := newSession()
	Init(sess, tokenWithExp(t, time.Now().Add(-time.Minute), "admin"), "admin", "root")

	var reached bool
	mw := Middleware{}
	h := mw.Load(mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
	_, ok := Restore(sess)
	assert.False(t, ok)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashInfo, flash.Kind)
}

func TestRequireAuthAnswersJSONClients(t *testing.T) {
	mw := Middleware{}
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/search?q=ab", nil)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdmin(t *testing.T) {
	mw := Middleware{}
	h := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	staff := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	staff = staff.WithContext(ContextWith(staff.Context(), SessionContext{Token: "t", Role: "staff", Username: "s"}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, staff)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	admin := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	admin = admin.WithContext(ContextWith(admin.Context(), SessionContext{Token: "t", Role: "admin", Username: "a"}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, admin)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	id, ok := shared.IdentityFromContext(admin.Context())
	require.True(t, ok)
	assert.True(t, id.IsAdmin())
}
