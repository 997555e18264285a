package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-grid-api/internal/middleware"
	"github.com/noah-isme/timetable-grid-api/internal/models"
)

const anonymousActor = "anonymous"

// claimsFromContext returns the bearer claims set by JWT or OptionalJWT, or nil
// for anonymous requests.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// actorFromContext names the caller on render jobs.
func actorFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil && claims.Username != "" {
		return claims.Username
	}
	return anonymousActor
}

func isAdmin(c *gin.Context) bool {
	claims := claimsFromContext(c)
	return claims != nil && claims.IsAdmin()
}
