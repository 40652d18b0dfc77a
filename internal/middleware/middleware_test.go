package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func protectedRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/learners/:id/weekly-view", JWT(validatorStub{claims: claims}), RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestJWTRequiresBearerToken(t *testing.T) {
	router := protectedRouter(&models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner}, RoleSelf)

	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"Basic abc":    http.StatusUnauthorized,
		"Bearer bad":   http.StatusUnauthorized,
		"Bearer good":  http.StatusNoContent,
		"bearer  good": http.StatusNoContent,
	}
	for header, status := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/learners/learner-1/weekly-view", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, "header %q", header)
	}
}

func TestRBACSelfAndRoles(t *testing.T) {
	other := protectedRouter(&models.JWTClaims{UserID: "learner-2", Role: models.RoleLearner}, string(models.RoleAdmin), RoleSelf)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/learners/learner-1/weekly-view", nil)
	req.Header.Set("Authorization", "Bearer good")
	other.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := protectedRouter(&models.JWTClaims{UserID: "root", Role: models.RoleAdmin}, string(models.RoleAdmin), RoleSelf)
	w = httptest.NewRecorder()
	admin.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/slots", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slots", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slots", nil))
	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)
}
