//go:build !js || !wasm

// Package env reads process configuration from the environment of the
// current runtime.
package env

import "os"

// Get returns the value of the environment variable key
func Get(key string) (string, bool) {
	return os.LookupEnv(key)
}
