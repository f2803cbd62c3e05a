package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"lock-sync-backend/internal/lock"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *lock.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrRefreshInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, lock.ErrUnsupportedEvent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lock.ErrCommandFailed), errors.Is(err, lock.ErrStatusUnknown):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
