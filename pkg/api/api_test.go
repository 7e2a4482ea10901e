package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"telematics/pkg/logger"
	"telematics/service"
	"telematics/storage/memory"
	"telematics/storage/storagetest"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.Record().Upsert(context.Background(), storagetest.Records()))
	svcs := service.NewWithOptions(st, logger.Nop(), service.AccountOptions{
		LockMonths: 12,
		CacheTTL:   time.Minute,
		HashCost:   bcrypt.MinCost,
		Now:        func() time.Time { return testNow },
	})
	s := New(svcs, Options{JWTSecret: "test-secret", SessionTTL: time.Hour, LockMonths: 12}, logger.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

type apiError struct {
	Error errorBody `json:"error"`
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, s *Server, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doGet(t *testing.T, s *Server, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func sessionFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doGet(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "telematics_http_requests_total")
}

func TestJSONAccountFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"license_plate": "KA10M1001", "license_number": "DL100001", "password": "pw", "confirm_password": "nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password_mismatch", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"license_plate": "KA10M1001", "license_number": "DL100001", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"driver_id":"1"}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"license_plate": "KA10M1001", "license_number": "DL100001", "password": "pw",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "license_registered", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"license_plate": "KA10M1001", "license_number": "DL100002", "password": "pw",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "record_not_found", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"license_number": "DL100001", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"license_number": "DL100001", "password": "pw",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "1", login.Driver.DriverID)
	assert.True(t, testNow.Add(time.Hour).Equal(login.ExpiresAt))
	assert.Equal(t, login.Token, sessionFrom(t, rec).Value)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		Driver struct {
			DriverID string `json:"driver_id"`
		} `json:"driver"`
		Record struct {
			TotalKm float64 `json:"total_km"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "1", details.Driver.DriverID)
	assert.Equal(t, 1500.5, details.Record.TotalKm)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/me/recommendation", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommendation"`)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/drivers/me/premium", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var premium struct {
		Quote struct {
			DriverID    int64   `json:"driver_id"`
			PAYDPremium float64 `json:"payd_premium"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &premium))
	assert.Equal(t, int64(1), premium.Quote.DriverID)
	assert.Positive(t, premium.Quote.PAYDPremium)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/me/plan", login.Token, map[string]string{"plan": "XYZ"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_plan", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/me/plan", login.Token, map[string]string{"plan": "PHYD"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected_plan":"PHYD"`)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/drivers/me/plan", login.Token, map[string]string{"plan": "PAYD"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "plan_locked", errorCode(t, rec))

	rec = doJSON(t, s, http.MethodGet, "/api/v1/premiums/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestTokenValidation(t *testing.T) {
	s := newTestServer(t)

	token, _, err := s.issueToken("1")
	require.NoError(t, err)
	id, err := s.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	other := New(nil, Options{JWTSecret: "other"}, logger.Nop())
	_, err = other.parseToken(token)
	require.Error(t, err)

	s.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err = s.parseToken(token)
	require.Error(t, err)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/drivers/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPages(t *testing.T) {
	s := newTestServer(t)

	rec := doGet(t, s, "/dashboard")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = doGet(t, s, "/register")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "New Driver Registration")

	rec = doForm(t, s, "/register", url.Values{"license_plate": {"KA10M1001"}, "license_number": {"DL100001"}, "password": {"pw"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please fill in all fields.")

	rec = doForm(t, s, "/register", url.Values{
		"license_plate": {"KA10M1001"}, "license_number": {"DL100001"}, "password": {"pw"}, "confirm_password": {"px"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match!")

	rec = doForm(t, s, "/register", url.Values{
		"license_plate": {"KA10M1001"}, "license_number": {"DL100001"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?registered=1", rec.Header().Get("Location"))

	rec = doGet(t, s, "/login?registered=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your Driver ID is: 1")

	rec = doForm(t, s, "/login", url.Values{"license_number": {"DL100001"}, "password": {"bad"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials. Please try again.")

	rec = doForm(t, s, "/login", url.Values{"license_number": {"DL100001"}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	session := sessionFrom(t, rec)
	assert.True(t, session.HttpOnly)

	rec = doGet(t, s, "/dashboard", session)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Driver ID: 1")
	assert.Contains(t, body, "Total Distance: 1500.50 km")
	assert.Contains(t, body, "Speeding Events: N/A")
	assert.Contains(t, body, "No UIB model selected")

	rec = doGet(t, s, "/recommendations", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model Comparison")

	rec = doForm(t, s, "/recommendations/select", url.Values{"plan": {"MHYD"}}, session)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/recommendations?selected=MHYD", rec.Header().Get("Location"))

	rec = doGet(t, s, "/recommendations?selected=MHYD", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Successfully enrolled in Manage-How-You-Drive!")

	rec = doGet(t, s, "/dashboard", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Locked into current model until: 2026-01-05")
	assert.Contains(t, rec.Body.String(), "Risk Events")

	rec = doForm(t, s, "/recommendations/select", url.Values{"plan": {"PAYD"}}, session)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan is locked")

	rec = doGet(t, s, "/login", session)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = doForm(t, s, "/logout", nil, session)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Negative(t, sessionFrom(t, rec).MaxAge)
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	s := newTestServer(t)
	long := strings.Repeat("p", service.MaxPasswordBytes+1)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"license_plate": "KA10M1001", "license_number": "DL100001", "password": long,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorCode(t, rec))

	rec = doForm(t, s, "/register", url.Values{
		"license_plate": {"KA10M1001"}, "license_number": {"DL100001"}, "password": {long}, "confirm_password": {long},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registration failed: invalid input: password must be at most 72 bytes")
}
