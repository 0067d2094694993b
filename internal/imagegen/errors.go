/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imagegen

import (
	"errors"
	"fmt"
)

// ErrNoImage is returned when the backend answers without an image.
var ErrNoImage = errors.New("response contained no image")

// HTTPError is a non-2xx response from the image backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err wraps an HTTPError with the given code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
