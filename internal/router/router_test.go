package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline/donation-api/internal/middleware"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/testutil"
	"github.com/lifeline/donation-api/pkg/auth"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/security"
)

type testServer struct {
	engine *gin.Engine
	repos  *repository.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos := memory.New().Repositories()
	tokens := auth.NewTokenManager("test-secret", "donation-api", time.Hour)

	r, err := New(Dependencies{
		Repos:              repos,
		Tokens:             tokens,
		Hasher:             security.NewBcryptHasher(4),
		Logger:             logger.Nop(),
		Registry:           prometheus.NewRegistry(),
		MetricsNamespace:   "test",
		DefaultRadiusMiles: 5,
		VisibilityWindow:   7 * 24 * time.Hour,
	}, RouterConfig{
		Mode:           gin.TestMode,
		RequestTimeout: 5 * time.Second,
		CORSConfig:     middleware.CORSConfig{AllowOrigins: []string{"*"}},
	})
	require.NoError(t, err)

	return &testServer{engine: r.Engine(), repos: repos, tokens: tokens}
}

type envelope struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
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
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (s *testServer) token(t *testing.T, seeded testutil.Seeded) string {
	t.Helper()
	tok, _, err := s.tokens.Generate(seeded.UserID, string(seeded.Actor.Role))
	require.NoError(t, err)
	return tok
}

func TestSignupLoginMe(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", model.SignupRequest{
		Email: "ada@example.org", Password: "correct horse", Role: model.RoleDonor,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", model.SignupRequest{
		Email: "ada@example.org", Password: "correct horse", Role: model.RoleDonor,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{
		Email: "ada@example.org", Password: "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{
		Email: "ada@example.org", Password: "correct horse",
	})
	require.Equal(t, http.StatusOK, code)
	var login model.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)

	code, env = s.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var me model.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "ada@example.org", me.Email)
	assert.Equal(t, model.RoleDonor, me.Role)
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "not-an-email", "password": "short", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", env.Status)
}

func TestAccessControl(t *testing.T) {
	s := newTestServer(t)
	donor := testutil.Donor(t, s.repos, testutil.DonorSeed{FirstName: "Ada", BloodType: model.BloodTypeOPos})

	code, _ := s.do(t, http.MethodGet, "/api/v1/donor/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/donor/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/hospital/urgency-requests", s.token(t, donor), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/donor/profile", s.token(t, donor), nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/donor/appointments/not-a-uuid/cancel", s.token(t, donor), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	preflight.Header.Set("Origin", "https://app.example.org")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

// A hospital broadcasts, the nearby donor sees and accepts it, and the
// request disappears from the donor's list once fulfilled.
func TestUrgencyFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	hospital := testutil.Hospital(t, s.repos, "Grady", testutil.Point(testutil.Atlanta))
	near := testutil.Donor(t, s.repos, testutil.DonorSeed{
		FirstName:   "Ada",
		BloodType:   model.BloodTypeOPos,
		Location:    testutil.Point(testutil.North(testutil.Atlanta, 0.3)),
		Eligibility: model.EligibilityEligible,
	})
	far := testutil.Donor(t, s.repos, testutil.DonorSeed{
		FirstName:   "Bo",
		BloodType:   model.BloodTypeOPos,
		Location:    testutil.Point(testutil.North(testutil.Atlanta, 6)),
		Eligibility: model.EligibilityEligible,
	})
	hospitalToken, nearToken, farToken := s.token(t, hospital), s.token(t, near), s.token(t, far)

	code, env := s.do(t, http.MethodPost, "/api/v1/hospital/urgency-requests", hospitalToken, map[string]interface{}{
		"blood_type": "O+", "urgency_level": 5, "message": "Trauma surge",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created model.CreateUrgencyResult
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 1, created.NotifiedDonors)
	requestID := created.Request.ID.String()

	code, env = s.do(t, http.MethodGet, "/api/v1/donor/urgency-requests/count", farToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":0}`, string(env.Data))

	code, env = s.do(t, http.MethodGet, "/api/v1/donor/urgency-requests", nearToken, nil)
	require.Equal(t, http.StatusOK, code)
	var visible []model.DonorUrgencyRequest
	require.NoError(t, json.Unmarshal(env.Data, &visible))
	require.Len(t, visible, 1)
	assert.Equal(t, "Grady", visible[0].HospitalName)
	assert.InDelta(t, 0.3, visible[0].DistanceMiles, 0.01)

	code, _ = s.do(t, http.MethodPost, "/api/v1/donor/urgency-requests/"+requestID+"/accept", nearToken, map[string]interface{}{
		"appointment_date": time.Now().Add(48 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/donor/urgency-requests/"+requestID+"/accept", nearToken, map[string]interface{}{
		"appointment_date": time.Now().Add(72 * time.Hour),
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/hospital/urgency-responses", hospitalToken, nil)
	require.Equal(t, http.StatusOK, code)
	var responses []model.HospitalUrgencyResponse
	require.NoError(t, json.Unmarshal(env.Data, &responses))
	require.Len(t, responses, 1)
	assert.Equal(t, model.ResponseAccepted, responses[0].ResponseType)
	assert.Equal(t, "Ada", responses[0].DonorFirstName)

	code, _ = s.do(t, http.MethodPut, "/api/v1/hospital/urgency-requests/"+requestID+"/fulfill", hospitalToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/donor/urgency-requests", nearToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}
