package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/presigned"
)

// StreamHandler serves asset file bytes over HTTP. When a signer is
// configured the route only accepts HMAC-signed URLs minted by the
// same signer, which is the temporary-URL fallback for storage
// backends without native presigning.
type StreamHandler struct {
	service atlasassets.Service
	signer  *presigned.Signer
	logger  *slog.Logger
}

func NewStreamHandler(service atlasassets.Service, signer *presigned.Signer, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{service: service, signer: signer, logger: logger}
}

// Routes returns the router for the stream endpoint
func (h *StreamHandler) Routes() chi.Router {
	r := chi.NewRouter()

	handler := http.Handler(http.HandlerFunc(h.Stream))
	if h.signer != nil {
		handler = presigned.ValidateMiddleware(h.signer, handler)
	}
	r.Method(http.MethodGet, "/{asset_id}/stream", handler)

	return r
}

// Stream writes the asset's file to the response as an inline
// attachment with a short private cache window.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := presigned.AssetIDFromContext(r.Context())
	if id == uuid.Nil {
		parsed, err := uuid.Parse(chi.URLParam(r, "asset_id"))
		if err != nil {
			http.Error(w, "invalid asset ID", http.StatusBadRequest)
			return
		}
		id = parsed
	}

	stream, err := h.service.Stream(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, atlasassets.ErrAssetNotFound), errors.Is(err, atlasassets.ErrFileNotFound):
			http.Error(w, "asset not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to open asset stream", "asset_id", id, "error", err)
			http.Error(w, "failed to stream asset", http.StatusInternalServerError)
		}
		return
	}
	defer stream.Body.Close()

	asset := stream.Asset
	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.OriginalFileName))
	w.Header().Set("Cache-Control", "max-age=300, private")

	if _, err := io.Copy(w, stream.Body); err != nil {
		// Headers are already written; nothing to do beyond logging.
		h.logger.Error("asset stream interrupted", "asset_id", id, "error", err)
	}
}
