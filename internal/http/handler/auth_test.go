package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planahead/internal/auth"
	"planahead/internal/db/dbtest"
)

func newAuthHandler(t *testing.T, allowed ...string) *AuthHandler {
	t.Helper()
	gdb := dbtest.Open(t, &auth.User{}, &auth.WhitelistEntry{})
	wl := &auth.Whitelist{DB: gdb}
	for _, email := range allowed {
		require.NoError(t, wl.Add(context.Background(), email))
	}
	return &AuthHandler{DB: gdb, JWT: auth.NewJWT("secret"), Whitelist: wl, Logger: zap.NewNop()}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"created", `{"email":"Ana@Example.com","password":"longenough"}`, http.StatusCreated},
		{"bad json", `{`, http.StatusBadRequest},
		{"invalid email", `{"email":"ana","password":"longenough"}`, http.StatusBadRequest},
		{"missing password", `{"email":"ana@example.com"}`, http.StatusBadRequest},
		{"short password", `{"email":"ana@example.com","password":"short"}`, http.StatusBadRequest},
		{"not whitelisted", `{"email":"bob@example.com","password":"longenough"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHandler(t, "ana@example.com")
			rec := post(h.Register, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h := newAuthHandler(t, "ana@example.com")
	body := `{"email":"ana@example.com","password":"longenough"}`

	require.Equal(t, http.StatusCreated, post(h.Register, body).Code)
	assert.Equal(t, http.StatusConflict, post(h.Register, body).Code)
}

func TestRegisterThenLogin(t *testing.T) {
	h := newAuthHandler(t, "ana@example.com")
	rec := post(h.Register, `{"email":"ana@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg struct{ Token string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	regID, err := h.JWT.Verify(reg.Token)
	require.NoError(t, err)

	rec = post(h.Login, `{"email":" ANA@example.com ","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct{ Token string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	loginID, err := h.JWT.Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, regID, loginID)

	assert.Equal(t, http.StatusUnauthorized, post(h.Login, `{"email":"ana@example.com","password":"wrongpass"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(h.Login, `{"email":"nobody@example.com","password":"longenough"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Login, `{"email":"ana@example.com"}`).Code)
}

func TestLoginStorageError(t *testing.T) {
	h := newAuthHandler(t)
	sqlDB, err := h.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := post(h.Login, `{"email":"ana@example.com","password":"longenough"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMe(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), 9))
	rec := httptest.NewRecorder()

	(&MeHandler{}).Me(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":9}`, rec.Body.String())
}
