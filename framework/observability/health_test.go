package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubCheck struct {
	name string
	err  error
}

func (s stubCheck) Name() string                  { return s.name }
func (s stubCheck) Check(ctx context.Context) error { return s.err }

func TestHealthManager_Handlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hm := NewHealthManager(0)
	hm.RegisterHealthCheck(stubCheck{name: "store"})
	hm.RegisterReadinessCheck(stubCheck{name: "bus", err: errors.New("not connected")})

	router := gin.New()
	router.GET("/healthz", hm.HealthCheckHandler())
	router.GET("/readyz", hm.ReadinessCheckHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not connected")
}

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := InjectCorrelationID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", ExtractCorrelationID(ctx))
	assert.Equal(t, "", ExtractCorrelationID(context.Background()))
}
