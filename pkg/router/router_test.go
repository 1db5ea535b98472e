package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talking-pet/companion/internal/gateway"
	"talking-pet/companion/internal/store"
	"talking-pet/companion/pkg/clock"
	"talking-pet/companion/pkg/config"
	"talking-pet/companion/pkg/logger"
)

type quietNarrator struct{}

func (quietNarrator) Play(string, string) {}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	client := gateway.NewClient("http://127.0.0.1:1", time.Second, log)
	st := store.New(client, quietNarrator{}, store.DefaultConfig(), clock.NewMock(time.Unix(0, 0)), log)
	t.Cleanup(st.Close)

	r := New(Dependencies{
		Config:    config.Load(),
		Logger:    log,
		Companion: st,
		Health:    func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) },
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	r.SetupRoutes()
	return r
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestStateRouteCarriesRequestID(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"mood":"neutral"`)
}

func TestAmbientRoutes(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, "# metrics", serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String())
	assert.Contains(t, serve(r, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil)).Body.String(), "openapi: 3.0.3")
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestValidation(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/minigame", strings.NewReader(`{"score":"lots"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request")
}
