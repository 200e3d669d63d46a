package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/validation"
)

// bindJSON decodes and validates the request body, turning failures into
// error signals.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.New(apperror.KindPayloadTooLarge, "request body too large")
	}
	return apperror.Validation("invalid payload", validation.ToDetails(err))
}
