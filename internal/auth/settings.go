package auth

import (
	"runtime"
	"time"

	"github.com/nerrad567/taskledger/internal/infrastructure/config"
)

// Settings is the immutable auth configuration built once at startup and
// handed to each component. Nothing in this package reads global state.
type Settings struct {
	// Secret signs and verifies session tokens (HS256).
	Secret []byte

	// TokenTTL is the session lifetime. Zero issues tokens with no exp claim.
	TokenTTL time.Duration

	// CookieName carries the session token. Defaults to "token".
	CookieName string

	// SecureCookie sets the Secure attribute on session cookies.
	SecureCookie bool

	// PasswordAlgorithm is used for new hashes: "bcrypt" or "argon2id".
	PasswordAlgorithm string

	// BcryptCost is the bcrypt work factor.
	BcryptCost int

	// MaxConcurrentHashes bounds simultaneous hash/verify calls.
	MaxConcurrentHashes int
}

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "token"

// SettingsFromConfig builds Settings from the loaded configuration.
// The secret is copied so later mutation of cfg cannot affect signing.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Secret:              []byte(cfg.Security.JWT.Secret),
		TokenTTL:            cfg.GetTokenTTL(),
		CookieName:          cfg.Security.Session.CookieName,
		SecureCookie:        cfg.API.TLS.Enabled,
		PasswordAlgorithm:   cfg.Security.Password.Algorithm,
		BcryptCost:          cfg.Security.Password.BcryptCost,
		MaxConcurrentHashes: cfg.Security.Password.MaxConcurrent,
	}.withDefaults()
}

// withDefaults fills zero values.
func (s Settings) withDefaults() Settings {
	if s.CookieName == "" {
		s.CookieName = DefaultCookieName
	}
	if s.PasswordAlgorithm == "" {
		s.PasswordAlgorithm = config.PasswordAlgorithmBcrypt
	}
	if s.MaxConcurrentHashes <= 0 {
		s.MaxConcurrentHashes = runtime.NumCPU()
	}
	return s
}
