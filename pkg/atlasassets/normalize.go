package atlasassets

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxStringLength = 255

// sanitizeString trims, hard-truncates to 255 characters, and maps blank
// input to nil. Never errors.
func sanitizeString(value *string) *string {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > maxStringLength {
		s = string([]rune(s)[:maxStringLength])
	}
	return &s
}

// sanitizeType validates a type tag against the [0,255] range.
func sanitizeType(value *int) (*int, error) {
	if value == nil {
		return nil, nil
	}
	v := *value
	if v < 0 || v > 255 {
		return nil, ErrInvalidType
	}
	return &v, nil
}

// normalizeSortOrder floors manual sort orders at zero. Nil passes through,
// meaning "not supplied".
func normalizeSortOrder(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	if v < 0 {
		v = 0
	}
	return &v
}

// fileExtension derives the lowercase extension (no leading dot) from a
// client filename, defaulting to "bin" when undeterminable.
func fileExtension(fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return "bin"
	}
	return ext
}

// normalizeExtensions lowercases, strips leading dots, drops blanks and
// duplicates. A nil input stays nil; treatEmptyAsNil collapses an
// all-blank list back to nil (configured lists) while per-call overrides
// keep the empty slice.
func normalizeExtensions(extensions []string, treatEmptyAsNil bool) []string {
	if extensions == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(extensions))
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		normalized = append(normalized, v)
	}
	if len(normalized) == 0 && treatEmptyAsNil {
		return nil
	}
	return normalized
}
