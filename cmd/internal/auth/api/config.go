package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	SignupEnabled bool
	TrustProxy    bool
	MaxBodyBytes  int64

	WebRefreshCookieEnabled bool
	RefreshCookieName       string
	CSRFCookieName          string
	CSRFHeaderName          string
	CookiePath              string
	CookieDomain            string
	CookieSecure            bool
	CookieSameSite          http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		SignupEnabled:           envBool("VIDTUBE_AUTH_SIGNUP_ENABLED", true),
		TrustProxy:              envBool("VIDTUBE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:            envInt64("VIDTUBE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		WebRefreshCookieEnabled: envBool("VIDTUBE_AUTH_WEB_COOKIES", true),
		RefreshCookieName:       "refresh_token",
		CSRFCookieName:          "csrf_token",
		CSRFHeaderName:          "X-CSRF-Token",
		CookiePath:              "/",
		CookieDomain:            strings.TrimSpace(os.Getenv("VIDTUBE_AUTH_COOKIE_DOMAIN")),
		CookieSecure:            envBool("VIDTUBE_AUTH_COOKIE_SECURE", true),
		CookieSameSite:          http.SameSiteNoneMode,
	}

	// SameSite=None requires Secure; fall back to Lax for plain-HTTP dev.
	if !cfg.CookieSecure {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
