package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/domain/shared/fault"
)

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.InvalidRequest:
		return http.StatusBadRequest
	case fault.Unauthenticated:
		return http.StatusUnauthorized
	case fault.Forbidden:
		return http.StatusForbidden
	case fault.Unavailable, fault.IllegalTransition, fault.Conflict:
		return http.StatusConflict
	case fault.DependencyFailure:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error", "code"}. Unclassified failures never leak
// their message to the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "status", status, "path", c.FullPath(), "error", err, "request_id", c.GetString("request_id"))
		}
		if fault.KindOf(err) == nil {
			message = http.StatusText(status)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": fault.Code(err)})
}

func respondBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": fault.Code(fault.InvalidRequest)})
}
