package webdav

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrQuotaExceeded marks a 507 from the server: quota exhaustion, never a
// transient condition. Matchable through errors.Is on a *StatusError.
var ErrQuotaExceeded = errors.New("remote storage quota exceeded")

// StatusError reports a non-success server status for one link, with
// actionable guidance where the status has a common cause.
type StatusError struct {
	Link   string
	Status int
}

func NewStatusError(link string, status int) *StatusError {
	return &StatusError{Link: link, Status: status}
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("webdav error on %s: http %d %s", e.Link, e.Status, http.StatusText(e.Status))
	if hint := guidance(e.Status); hint != "" {
		msg += ", " + hint
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Status == http.StatusInsufficientStorage
}

func guidance(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication failed, check the configured username/password"
	case http.StatusForbidden:
		return "access forbidden, check that webdav is enabled and the path is within your allowed scope"
	case http.StatusNotFound:
		return "not found, for writes the parent directory must exist"
	case http.StatusMethodNotAllowed:
		return "method not allowed, the server may not support this webdav operation"
	case http.StatusConflict:
		return "conflict, parent directory may not exist, create it first"
	case http.StatusInsufficientStorage:
		return "storage is full, free up space or resize your storage"
	}
	return ""
}
