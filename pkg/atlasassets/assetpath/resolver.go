// Package assetpath turns an upload plus optional owning-entity context into
// a normalized storage key, via {placeholder} patterns or a caller-supplied
// override function.
package assetpath

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fallbackValue substitutes for placeholders whose context is absent, and for
// keys that normalize to nothing.
const fallbackValue = "none"

// fallbackKey is returned when an entire resolved key normalizes to empty.
const fallbackKey = "asset"

// defaultDateLayout is the Go time layout used by a bare {date:} placeholder.
const defaultDateLayout = "20060102150405"

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// knownPlaceholders lists every supported token. Unknown placeholders are
// rejected when the resolver is constructed, not at call time.
var knownPlaceholders = map[string]struct{}{
	"model_type":    {},
	"model_id":      {},
	"user_id":       {},
	"original_name": {},
	"file_name":     {},
	"extension":     {},
	"random":        {},
	"uuid":          {},
}

// ErrEmptyResolverResult indicates a custom ResolveFunc returned an empty key.
var ErrEmptyResolverResult = errors.New("path resolver must return a non-empty string")

// File carries the upload facts a pattern can reference.
type File struct {
	// OriginalName is the client-supplied filename, extension included.
	OriginalName string
	// Extension overrides the extension derived from OriginalName. Lowercase,
	// no leading dot. May be empty.
	Extension string
}

// Context carries the optional owning-entity and caller attributes a pattern
// can reference. Empty fields resolve to the "none" literal.
type Context struct {
	OwnerType string
	OwnerID   string
	UserID    string
}

// ResolveFunc is a caller-supplied key generation strategy. It must return a
// non-empty string; the result is normalized like pattern output.
type ResolveFunc func(ctx Context, file File) (string, error)

// Resolver resolves storage keys. Construct with NewPatternResolver or
// NewFuncResolver.
type Resolver struct {
	pattern string
	fn      ResolveFunc
	now     func() time.Time
}

// NewPatternResolver creates a Resolver that expands the given placeholder
// pattern. Unknown placeholders fail eagerly here so misconfiguration
// surfaces at startup rather than on the first upload.
func NewPatternResolver(pattern string) (*Resolver, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("path pattern must not be empty")
	}
	for _, match := range placeholderPattern.FindAllStringSubmatch(pattern, -1) {
		if err := validatePlaceholder(match[1]); err != nil {
			return nil, err
		}
	}
	return &Resolver{pattern: pattern, now: time.Now}, nil
}

// NewFuncResolver creates a Resolver backed by a custom strategy.
func NewFuncResolver(fn ResolveFunc) (*Resolver, error) {
	if fn == nil {
		return nil, errors.New("path resolver function must not be nil")
	}
	return &Resolver{fn: fn, now: time.Now}, nil
}

func validatePlaceholder(name string) error {
	if name == "" {
		return errors.New("empty path placeholder")
	}
	if rest, ok := strings.CutPrefix(name, "date:"); ok {
		if rest == "" {
			return nil // bare {date:} uses the default layout
		}
		return nil
	}
	if name == "date" {
		return nil
	}
	if _, ok := knownPlaceholders[name]; !ok {
		return fmt.Errorf("unsupported path placeholder %q", name)
	}
	return nil
}

// Resolve produces a normalized storage key. It is a pure function of its
// inputs apart from the random, uuid and date placeholders.
func (r *Resolver) Resolve(ctx Context, file File) (string, error) {
	if r.fn != nil {
		key, err := r.fn(ctx, file)
		if err != nil {
			return "", err
		}
		if key == "" {
			return "", ErrEmptyResolverResult
		}
		return Normalize(key), nil
	}

	expanded := placeholderPattern.ReplaceAllStringFunc(r.pattern, func(token string) string {
		name := token[1 : len(token)-1]
		return r.expand(name, ctx, file)
	})

	return Normalize(expanded), nil
}

func (r *Resolver) expand(name string, ctx Context, file File) string {
	switch name {
	case "model_type":
		return orFallback(ctx.OwnerType)
	case "model_id":
		return orFallback(ctx.OwnerID)
	case "user_id":
		return orFallback(ctx.UserID)
	case "original_name", "file_name":
		return fileNameStem(file.OriginalName)
	case "extension":
		return extension(file)
	case "random":
		return randomToken(16)
	case "uuid":
		return uuid.NewString()
	case "date":
		return r.now().UTC().Format(defaultDateLayout)
	}
	if layout, ok := strings.CutPrefix(name, "date:"); ok {
		if layout == "" {
			layout = defaultDateLayout
		}
		return r.now().UTC().Format(layout)
	}
	// Unreachable for validated patterns.
	return fallbackValue
}

func orFallback(value string) string {
	if strings.TrimSpace(value) == "" {
		return fallbackValue
	}
	return value
}

func fileNameStem(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	slug := slugify(stem)
	if slug == "" {
		return fallbackValue
	}
	return slug
}

func extension(file File) string {
	ext := file.Extension
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(file.OriginalName), ".")
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return "bin"
	}
	return ext
}

// slugify lowercases and replaces every run of non-alphanumeric characters
// with a single underscore.
func slugify(value string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func randomToken(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// uuid-derived token rather than panicking mid-upload.
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
	}
	return hex.EncodeToString(buf)[:length]
}

// Normalize converts backslashes to forward slashes, collapses repeated
// slashes, trims leading/trailing slashes and drops empty segments. An empty
// result becomes the "asset" fallback literal.
func Normalize(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	segments := strings.Split(key, "/")
	cleaned := segments[:0]
	for _, s := range segments {
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	normalized := strings.Join(cleaned, "/")
	if normalized == "" {
		return fallbackKey
	}
	return normalized
}
