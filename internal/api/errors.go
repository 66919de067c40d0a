package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sternrassler/listing-sync/pkg/client"
	"github.com/Sternrassler/listing-sync/pkg/easybroker"
	"github.com/Sternrassler/listing-sync/pkg/logging"
	"github.com/Sternrassler/listing-sync/pkg/pagination"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to an HTTP status and public message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pagination.ErrUnavailable):
		return http.StatusServiceUnavailable, "upstream unavailable"
	case errors.Is(err, pagination.ErrIncomplete):
		return http.StatusBadGateway, "upstream listing incomplete"
	case errors.Is(err, easybroker.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, easybroker.ErrInvalidID),
		errors.Is(err, easybroker.ErrInvalidLead),
		errors.Is(err, pagination.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, client.ErrCircuitOpen), errors.Is(err, client.ErrRateLimited):
		return http.StatusServiceUnavailable, "upstream unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "upstream timeout"
	default:
		return http.StatusBadGateway, "upstream error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	logger := logging.FromContext(c.Request.Context())
	if status >= 500 {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
