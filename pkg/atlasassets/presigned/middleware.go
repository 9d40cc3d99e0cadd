package presigned

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// AssetIDContextKey is the context key holding the validated asset ID
const AssetIDContextKey contextKey = "presigned:asset_id"

// ValidateMiddleware returns middleware that validates signed stream
// URLs with a pre-configured Signer. On success the validated asset ID
// is placed in the request context; on failure an HTTP error response
// is written.
func ValidateMiddleware(signer *Signer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !signer.IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		if err := signer.ValidateRequest(r); err != nil {
			writeValidationError(w, err)
			return
		}

		assetID, err := signer.ExtractAssetID(r.URL.Path)
		if err != nil {
			http.Error(w, "invalid stream URL", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), AssetIDContextKey, assetID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AssetIDFromContext extracts the validated asset ID from the request
// context. Returns uuid.Nil when absent.
func AssetIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(AssetIDContextKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case err == ErrMissingSignature:
		http.Error(w, "missing signature parameter", http.StatusUnauthorized)
	case err == ErrMissingExpiration:
		http.Error(w, "missing expires parameter", http.StatusUnauthorized)
	case err == ErrExpired:
		http.Error(w, "signed URL has expired", http.StatusForbidden)
	case err == ErrInvalidSignature:
		http.Error(w, "invalid signature", http.StatusForbidden)
	default:
		http.Error(w, "invalid expires parameter", http.StatusBadRequest)
	}
}
