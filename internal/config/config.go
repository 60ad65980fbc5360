// Package config holds the settings of the lark-kit binaries.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/myzkey/lark-kit"
)

const (
	DefaultHTTPAddress = ":8080"
	DefaultTimeout     = 30 * time.Second
)

var urlPattern = regexp.MustCompile(`^https?://[^/\s]+`)

// Config is read from lark-kit.yaml and the environment
type Config struct {
	AppID             string        `mapstructure:"app_id" json:"app_id"`
	AppSecret         string        `mapstructure:"app_secret" json:"app_secret"`
	Domain            string        `mapstructure:"domain" json:"domain"`
	VerificationToken string        `mapstructure:"verification_token" json:"verification_token"`
	EncryptKey        string        `mapstructure:"encrypt_key" json:"encrypt_key"`
	RedisURL          string        `mapstructure:"redis_url" json:"redis_url"`
	TokenFile         string        `mapstructure:"token_file" json:"token_file"`
	HTTPAddress       string        `mapstructure:"http_address" json:"http_address"`
	EchoReplies       bool          `mapstructure:"echo_replies" json:"echo_replies"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
}

// envKeys maps config keys to environment variables
var envKeys = map[string]string{
	"app_id":             "LARK_APP_ID",
	"app_secret":         "LARK_APP_SECRET",
	"domain":             "LARK_DOMAIN",
	"verification_token": "LARK_VERIFICATION_TOKEN",
	"encrypt_key":        "LARK_ENCRYPT_KEY",
	"redis_url":          "REDIS_URL",
	"token_file":         "LARK_TOKEN_FILE",
	"http_address":       "HTTP_ADDRESS",
	"echo_replies":       "LARK_ECHO_REPLIES",
	"timeout":            "LARK_TIMEOUT",
}

// FromLookup builds a Config from environment-style variables only. It is
// used where no config file exists, e.g. on Workers.
func FromLookup(lookup func(key string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		value, _ := lookup(envKeys[key])
		return strings.TrimSpace(value)
	}

	cfg := &Config{
		AppID:             get("app_id"),
		AppSecret:         get("app_secret"),
		Domain:            get("domain"),
		VerificationToken: get("verification_token"),
		EncryptKey:        get("encrypt_key"),
		RedisURL:          get("redis_url"),
		TokenFile:         get("token_file"),
		HTTPAddress:       get("http_address"),
		Timeout:           DefaultTimeout,
	}

	if raw := get("echo_replies"); raw != "" {
		echo, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envKeys["echo_replies"], err)
		}
		cfg.EchoReplies = echo
	}
	if raw := get("timeout"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envKeys["timeout"], err)
		}
		cfg.Timeout = timeout
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Domain = ResolveDomain(c.Domain)
	if c.HTTPAddress == "" {
		c.HTTPAddress = DefaultHTTPAddress
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// ResolveDomain maps "feishu" and "lark" to their base URLs. Other values
// are returned without a trailing slash; empty selects Feishu.
func ResolveDomain(domain string) string {
	switch strings.ToLower(strings.TrimSpace(domain)) {
	case "", "feishu":
		return lark.DomainFeishu
	case "lark", "larksuite":
		return lark.DomainLark
	}
	return strings.TrimRight(strings.TrimSpace(domain), "/")
}

// Validate checks the settings needed to call the API
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AppID, validation.Required),
		validation.Field(&c.AppSecret, validation.Required),
		validation.Field(&c.Domain, validation.Required, validation.Match(urlPattern).Error("must be an http(s) URL")),
		validation.Field(&c.HTTPAddress, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
	)
}
