package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/api"
	iauth "github.com/charlesng35/talenthub/internal/auth"
	sharedtestutil "github.com/charlesng35/talenthub/internal/database/testutil"
	"github.com/charlesng35/talenthub/internal/models"
	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/internal/storage"
	"github.com/charlesng35/talenthub/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Hub     *realtime.Hub
	Resumes *storage.LocalResumeStore
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	hub := realtime.NewHub(realtime.Options{})
	t.Cleanup(hub.Close)

	resumes, err := storage.NewLocalResumeStore(t.TempDir(), "/uploads/resumes", 1<<20)
	require.NoError(t, err)

	jobs, err := services.NewGormJobDirectory(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)
	dispatcher, err := services.NewNotificationDispatcher(notifications, services.WithLivePusher(hub))
	require.NoError(t, err)
	applications, err := services.NewApplicationService(db, jobs, dispatcher, services.WithResumeRemover(resumes))
	require.NoError(t, err)
	savedJobs, err := services.NewSavedJobService(db, jobs)
	require.NoError(t, err)
	dashboard, err := services.NewDashboardService(db)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:              db,
		Auth:            jwtSvc,
		Hub:             hub,
		Applications:    applications,
		Notifications:   notifications,
		SavedJobs:       savedJobs,
		Dashboard:       dashboard,
		Resumes:         resumes,
		ResumeDir:       resumes.Dir(),
		ResumePath:      "/uploads/resumes",
		MetricsEndpoint: "/metrics",
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Hub:     hub,
		Resumes: resumes,
	}
}

// CreateUser inserts a user with the given role and returns the record.
func (e *Env) CreateUser(role string) *models.User {
	e.T.Helper()

	name := role + "-" + uuid.NewString()[:8]
	user := &models.User{
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// CreateJob inserts a job owned by owner.
func (e *Env) CreateJob(owner *models.User, title string) *models.Job {
	e.T.Helper()

	job := &models.Job{
		Title:     title,
		Company:   "Acme",
		CreatedBy: owner.ID,
	}
	require.NoError(e.T, e.DB.Create(job).Error)
	return job
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// Do executes a prepared request, adding the bearer token when set.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:4321"

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
