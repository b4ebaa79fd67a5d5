// Package pirconfig holds the fixed protocol constants and environment
// overrides for the PIR content-delivery backend. Nothing here is
// hot-reloaded: the process reads its configuration once at startup.
package pirconfig

import (
	"os"
	"time"
)

const (
	// ChunkSize is the fixed size, in bytes, of every chunk except possibly
	// the last chunk of a module.
	ChunkSize = 4096

	// K is the number of query vectors a PIR request must supply.
	K = 3

	// Modulus is the ring the PIR computation operates over.
	Modulus = 256

	// Compressor names the fixed, versioned compressor used by the ingest
	// pipeline. The client must decompress with the same algorithm, so this
	// is part of the wire protocol, not a server-local detail.
	Compressor = "zstd"

	// DefaultSessionTTL is the sliding session lifetime.
	DefaultSessionTTL = 900 * time.Second

	// DefaultAdminSecret is used only when ADMIN_SECRET is unset. Startup
	// must warn loudly when this default is in effect.
	DefaultAdminSecret = "change-me"

	// DefaultListenAddr is the address the HTTP server binds by default.
	DefaultListenAddr = ":8080"
)

// AdminSecret returns the configured admin shared secret, reporting whether
// it came from the environment (false means the insecure built-in default
// is in effect and the caller must warn).
func AdminSecret() (secret string, fromEnv bool) {
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		return v, true
	}
	return DefaultAdminSecret, false
}

// DataDir returns the configured data directory, or "" if PIRSERVE_DATA_DIR
// is unset (the caller should fall back to home.Default()).
func DataDir() string {
	return os.Getenv("PIRSERVE_DATA_DIR")
}

// ListenAddr returns the configured listen address, falling back to
// DefaultListenAddr.
func ListenAddr() string {
	if v := os.Getenv("PIRSERVE_LISTEN_ADDR"); v != "" {
		return v
	}
	return DefaultListenAddr
}

// SessionTTL returns the configured session lifetime, falling back to
// DefaultSessionTTL. PIRSERVE_SESSION_TTL is parsed with time.ParseDuration
// (e.g. "15m"); an invalid or absent value falls back to the default.
func SessionTTL() time.Duration {
	v := os.Getenv("PIRSERVE_SESSION_TTL")
	if v == "" {
		return DefaultSessionTTL
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return DefaultSessionTTL
	}
	return d
}
