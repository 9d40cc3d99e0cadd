package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing.
// The key should be at least 32 bytes.
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithDefaultExpiration sets the default lifetime for signed URLs.
// Default is 1 hour.
func WithDefaultExpiration(duration time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = duration
	}
}

// WithRoutePattern sets the stream route pattern. The pattern must
// contain an {id} placeholder.
// Examples: "/assets/{id}/stream", "/api/v1/assets/{id}/stream"
func WithRoutePattern(pattern string) Option {
	return func(s *Signer) {
		s.routePattern = pattern
	}
}

// WithBaseURL prefixes signed stream URLs with an absolute base,
// e.g. "https://api.example.com".
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = baseURL
	}
}
