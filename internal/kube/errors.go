package kube

import (
	"context"
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// StatusCode returns the HTTP status carried by an API error, or 0 when err
// did not come from the API server.
func StatusCode(err error) int {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return int(status.Status().Code)
	}
	return 0
}

// IsNotFound reports a 404 from the API server.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// IsTransient reports whether a failed call may succeed if repeated.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := StatusCode(err)
	if code == 0 {
		return true
	}
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// Message returns the API server's reason for a failed call.
func Message(err error) string {
	var status apierrors.APIStatus
	if errors.As(err, &status) && status.Status().Message != "" {
		return status.Status().Message
	}
	return err.Error()
}
