package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/services"
)

// errorStatus maps a service error to the HTTP status returned to callers.
func errorStatus(err error) int {
	var (
		validationErr  *services.ValidationError
		notFoundErr    *services.ClusterNotFoundError
		partialUpdate  *services.PartialUpdateError
		partialDelete  *services.PartialDeleteError
		dbWriteErr     *services.DatabaseWriteError
		clusterErr     *services.ClusterWriteError
		unavailableErr *services.UpstreamUnavailableError
		dbStatusErr    *ipac.StatusError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr), errors.Is(err, services.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.As(err, &partialUpdate), errors.As(err, &partialDelete), errors.As(err, &dbWriteErr):
		return http.StatusBadGateway
	case errors.As(err, &clusterErr):
		if clusterErr.StatusCode >= http.StatusBadRequest && clusterErr.StatusCode < 600 {
			return clusterErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &dbStatusErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ..., "inconsistent": ...}. Inconsistent is
// true when the cluster and the policy database no longer agree.
func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log().WithField("path", c.FullPath()).WithError(err).Error("request failed")
	}
	c.JSON(status, gin.H{
		"error":        err.Error(),
		"inconsistent": services.IsInconsistent(err),
	})
}

var errMissingName = &services.ValidationError{Field: "name", Reason: "query parameter is required"}

// respondBindError answers a request body that could not be decoded.
func respondBindError(c *gin.Context, err error) {
	respondError(c, &services.ValidationError{Field: "body", Reason: err.Error()})
}
