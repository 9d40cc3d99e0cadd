// Package presigned provides HMAC-signed URLs for the asset stream
// endpoint. It covers storage backends that cannot mint temporary URLs
// of their own: instead of handing out a direct blob URL, the
// application signs a link to its own stream route and validates the
// signature when the link is visited.
package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer generates and validates HMAC-signed stream URLs.
type Signer struct {
	secretKey         []byte
	defaultExpiration time.Duration
	routePattern      string // e.g., "/assets/{id}/stream"
	baseURL           string
}

// New creates a Signer with the given options.
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: 1 * time.Hour,
		routePattern:      "/assets/{id}/stream",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SignStreamURL builds a signed URL for streaming the given asset.
// The returned URL carries signature and expires query parameters and,
// when a base URL is configured, is absolute.
func (s *Signer) SignStreamURL(assetID uuid.UUID, expiresIn time.Duration) (string, error) {
	path := strings.Replace(s.routePattern, "{id}", assetID.String(), 1)

	signedPath, err := s.SignURL(http.MethodGet, path, expiresIn)
	if err != nil {
		return "", err
	}

	return s.baseURL + signedPath, nil
}

// SignURL signs an arbitrary method and path. Returns the path with
// signature and expiration query parameters appended.
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	if expiresIn <= 0 {
		expiresIn = s.defaultExpiration
	}

	expiresAt := time.Now().Add(expiresIn).Unix()
	signature := s.sign(s.payload(method, path, expiresAt))

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return fmt.Sprintf("%s%ssignature=%s&expires=%d", path, separator, signature, expiresAt), nil
}

// ValidateRequest checks the signature and expiration carried by an
// incoming HTTP request. Query parameters other than signature and
// expires are folded back into the signed path.
func (s *Signer) ValidateRequest(r *http.Request) error {
	if len(s.secretKey) == 0 {
		// No secret key configured; validation is disabled.
		return nil
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		cleanQuery := url.Values{}
		for k, v := range query {
			if k != "signature" && k != "expires" {
				cleanQuery[k] = v
			}
		}
		if len(cleanQuery) > 0 {
			path = path + "?" + cleanQuery.Encode()
		}
	}

	return s.Validate(r.Method, path, signature, expiresAt)
}

// Validate checks a signature against the method, path and expiration
// it claims to cover.
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if time.Now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.sign(s.payload(method, path, expiresAt))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ExtractAssetID pulls the asset ID out of a path that matches the
// configured route pattern.
func (s *Signer) ExtractAssetID(path string) (uuid.UUID, error) {
	placeholder := "{id}"

	idx := strings.Index(s.routePattern, placeholder)
	if idx == -1 {
		return uuid.Nil, fmt.Errorf("route pattern does not contain {id} placeholder")
	}

	prefix := s.routePattern[:idx]
	suffix := s.routePattern[idx+len(placeholder):]

	if !strings.HasPrefix(path, prefix) {
		return uuid.Nil, fmt.Errorf("path does not match route pattern prefix")
	}

	raw := strings.TrimPrefix(path, prefix)
	if suffix != "" {
		if !strings.HasSuffix(raw, suffix) {
			return uuid.Nil, fmt.Errorf("path does not match route pattern suffix")
		}
		raw = strings.TrimSuffix(raw, suffix)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid asset id in path: %w", err)
	}

	return id, nil
}

// IsEnabled reports whether signature validation is active.
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// payload format: METHOD|PATH|EXPIRES
func (s *Signer) payload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) sign(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
