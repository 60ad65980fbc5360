//go:build js && wasm

package env

import "github.com/syumai/workers/cloudflare"

// Get returns the Workers variable or secret named key. Workers cannot
// distinguish unset from empty, so an empty value reports false.
func Get(key string) (string, bool) {
	value := cloudflare.Getenv(key)
	return value, value != ""
}
