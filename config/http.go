package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// MaxConns caps concurrently accepted connections. Camera bursts can open
	// many simultaneous uploads; the listener refuses the excess instead of
	// letting them pile onto the accept queue. Zero disables the cap.
	MaxConns int `env:"HTTP_MAX_CONNS" envDefault:"256"`

	// MaxUploadBytes limits the size of a single multipart image upload.
	MaxUploadBytes int64 `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxConns < 0 {
		h.MaxConns = 0
	}
	if h.MaxUploadBytes <= 0 {
		h.MaxUploadBytes = 10 << 20
	}
}
