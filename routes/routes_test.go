package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"bestsellers-etl/controllers"
	"bestsellers-etl/models"
	"bestsellers-etl/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testAPI struct {
	router   *gin.Engine
	statuses *services.LoadStatusService
	runs     *services.EtlRunService
}

func newTestAPI(t *testing.T, secret string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	api := &testAPI{
		router:   gin.New(),
		statuses: services.NewLoadStatusService(db, nil),
		runs:     services.NewEtlRunService(db),
	}
	SetupRoutes(api.router, controllers.NewStatusController(api.statuses, api.runs, nil), secret)
	return api
}

func (api *testAPI) get(t *testing.T, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, "secret")
	w, body := api.get(t, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLoadStatusEndpoints(t *testing.T) {
	api := newTestAPI(t, "")
	ctx := context.Background()
	msg := "upstream down"
	api.statuses.SetStatus(ctx, day(1), day(1), models.LoadStatusCompleted, nil)
	api.statuses.SetStatus(ctx, day(2), day(2), models.LoadStatusFailed, &msg)
	api.statuses.SetStatus(ctx, day(3), day(2), models.LoadStatusCompleted, nil)

	w, body := api.get(t, "/api/v1/load-status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["count"])

	w, body = api.get(t, "/api/v1/load-status?status=failed&from=2024-03-02&to=2024-03-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, body["count"])
	row := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "upstream down", row["error_message"])

	w, body = api.get(t, "/api/v1/load-status/2024-03-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	latest := body["data"].(map[string]interface{})
	assert.Equal(t, models.LoadStatusCompleted, latest["status"])

	w, _ = api.get(t, "/api/v1/load-status/2024-03-09", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.get(t, "/api/v1/load-status/March-2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.get(t, "/api/v1/load-status?status=DONE", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.get(t, "/api/v1/load-status?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunEndpoints(t *testing.T) {
	api := newTestAPI(t, "")
	run, err := api.runs.Start(context.Background(), models.EtlRunModeIncremental, "cron", day(1), day(1))
	require.NoError(t, err)

	w, body := api.get(t, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, body = api.get(t, "/api/v1/runs/"+run.RunUUID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cron", body["data"].(map[string]interface{})["trigger_source"])

	w, _ = api.get(t, "/api/v1/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.get(t, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "dashboard",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	api := newTestAPI(t, "s3cret")
	valid := signToken(t, "s3cret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	w, _ := api.get(t, "/api/v1/runs", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.get(t, "/api/v1/runs", signToken(t, "other", jwt.SigningMethodHS256, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.get(t, "/api/v1/runs", signToken(t, "s3cret", jwt.SigningMethodHS256, time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.get(t, "/api/v1/runs", signToken(t, "s3cret", jwt.SigningMethodHS512, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.get(t, "/api/v1/runs", valid)
	assert.Equal(t, http.StatusOK, w.Code)
}
