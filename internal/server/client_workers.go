//go:build js && wasm

package server

import (
	"net/http"
	"time"
)

// NewHTTPClient creates the outbound client used for platform API calls. On
// Workers the default transport is backed by fetch.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
