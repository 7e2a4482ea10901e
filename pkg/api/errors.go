package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telematics/pkg/logger"
	"telematics/service"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrUnknownPlan):
		return http.StatusBadRequest, "unknown_plan"
	case errors.Is(err, service.ErrLicenseRegistered):
		return http.StatusConflict, "license_registered"
	case errors.Is(err, service.ErrDriverRegistered):
		return http.StatusConflict, "driver_registered"
	case errors.Is(err, service.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found"
	case errors.Is(err, service.ErrRecordsUnavailable):
		return http.StatusServiceUnavailable, "records_unavailable"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrDriverNotFound):
		return http.StatusNotFound, "driver_not_found"
	case errors.Is(err, service.ErrPlanLocked):
		return http.StatusConflict, "plan_locked"
	}
	return http.StatusInternalServerError, "internal"
}

// userMessage hides internal failures behind a generic text.
func userMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", logger.String("path", c.Request.URL.Path), logger.Error(err))
	}
	writeError(c, status, code, userMessage(status, err))
}
