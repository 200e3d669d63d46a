package middleware

import (
	"expvar"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/response"
)

const internalErrorMessage = "Internal server error"

var errorsByKind = expvar.NewMap("http_errors_by_kind")

// ErrorHandler is the single place where error signals become HTTP responses.
// Handlers report failures with c.Error and return. In production, 5xx
// responses carry a generic message and no details; stacks are only logged.
func ErrorHandler(logger *logrus.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}

		sig := apperror.From(c.Errors.Last().Err)
		errorsByKind.Add(string(sig.Kind), 1)
		logSignal(logger, c, sig, production)

		if c.Writer.Written() {
			return
		}

		message, details := sig.Message, sig.Details
		if sig.IsServerError() {
			switch {
			case production:
				message, details = internalErrorMessage, nil
			case details == nil && sig.Cause() != nil:
				details = sig.Cause().Error()
			}
		}
		response.Error[any](c, sig.StatusCode, message, details)
	}
}

// Recovery turns panics into Unexpected signals handled by ErrorHandler.
// It must be registered after ErrorHandler.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		_ = c.Error(apperror.Unexpected(fmt.Errorf("panic: %v", rec)))
		c.Abort()
	})
}

func logSignal(logger *logrus.Logger, c *gin.Context, sig *apperror.Error, production bool) {
	if logger == nil {
		return
	}
	entry := logger.WithFields(logrus.Fields{
		"status":     sig.StatusCode,
		"kind":       sig.Kind,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("request_id"),
	})
	if !sig.IsServerError() {
		entry.Warn(sig.Message)
		return
	}
	if cause := sig.Cause(); cause != nil {
		entry = entry.WithError(cause)
		if !production {
			entry = entry.WithField("stack", fmt.Sprintf("%+v", cause))
		}
	}
	entry.Error(sig.Message)
}
