package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planahead/internal/auth"
	"planahead/internal/config"
	"planahead/internal/db/dbtest"
	"planahead/internal/place"
	"planahead/internal/plan"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Whitelist) {
	t.Helper()
	gdb := dbtest.Open(t, &auth.User{}, &auth.WhitelistEntry{}, &place.Place{}, &plan.Tag{}, &plan.Plan{}, &plan.PlanTag{})
	jwtSvc := auth.NewJWT("secret")
	logger := zap.NewNop()

	svc := &plan.Service{DB: gdb, Places: &place.Repository{DB: gdb, Logger: logger}, Logger: logger}
	wl := &auth.Whitelist{DB: gdb}
	r := NewRouter(config.Config{CORSAllowedOrigins: []string{"http://app.test"}}, Deps{
		DB:        gdb,
		JWT:       jwtSvc,
		Whitelist: wl,
		Plans:     svc,
		Logger:    logger,
	})
	return r, wl
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/me"},
		{http.MethodGet, "/plans"},
		{http.MethodPost, "/plans"},
		{http.MethodGet, "/plans/1"},
		{http.MethodPut, "/plans/1"},
		{http.MethodPost, "/places/search"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.path)
	}
}

func TestPlanFlow(t *testing.T) {
	r, wl := newTestRouter(t)

	register := `{"email":"ana@example.com","password":"longenough"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(register)))
	require.Equal(t, http.StatusBadRequest, rec.Code, "not whitelisted yet")

	require.NoError(t, wl.Add(context.Background(), "ana@example.com"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(register)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reg struct{ Token string }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+reg.Token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec = do(http.MethodGet, "/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"plans":[]}`, rec.Body.String())

	rec = do(http.MethodPost, "/plans", `{"place_id":"g-1","name":"Cafe","address":"1 Main St","latitude":1.5,"longitude":2.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct{ ID uint64 }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := fmt.Sprintf("/plans/%d", created.ID)

	rec = do(http.MethodPut, path, `{"date":"2099-01-02T03:04:05Z","tags":["trip"," food ","trip"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"plan":{"id":1,"date":"2099-01-02T03:04:05.000Z","detail":null,"tags":["food","trip"],`+
		`"place":{"name":"Cafe","address":"1 Main St"}}}`, rec.Body.String())

	rec = do(http.MethodGet, "/plans/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/plans", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
