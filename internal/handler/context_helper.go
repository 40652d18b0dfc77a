package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-scheduling-api/internal/middleware"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func responseMeta(c *gin.Context, cacheHit bool) map[string]interface{} {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": cacheHit}
	}
	return meta
}
