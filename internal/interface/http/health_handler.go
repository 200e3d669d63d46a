package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userapp "github.com/oksasatya/lms-backend/internal/application"
	"github.com/oksasatya/lms-backend/pkg/response"
)

type HealthHandler struct {
	Svc *userapp.Service
}

func NewHealthHandler(svc *userapp.Service) *HealthHandler {
	return &HealthHandler{Svc: svc}
}

// Test GET /test
func (h *HealthHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "API working",
	})
}

// Ready GET /api/v1/health/ready pings the store and the cache.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.Svc.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ready": true}, "ready", nil)
}
