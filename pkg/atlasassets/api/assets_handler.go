// Package api exposes the asset service over HTTP using chi. It covers
// multipart uploads, metadata management, listing, deletion and the
// signed streaming endpoint.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger files spill to temp files.
const maxMultipartMemory = 32 << 20

// AssetsHandler handles asset upload and management endpoints
type AssetsHandler struct {
	service atlasassets.Service
	logger  *slog.Logger
}

func NewAssetsHandler(service atlasassets.Service, logger *slog.Logger) *AssetsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetsHandler{service: service, logger: logger}
}

// Routes returns the router for asset endpoints
func (h *AssetsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	r.Get("/", h.List)
	r.Post("/purge", h.Purge)
	r.Get("/{asset_id}", h.Get)
	r.Patch("/{asset_id}", h.Update)
	r.Delete("/{asset_id}", h.Delete)
	r.Post("/{asset_id}/replace", h.Replace)
	r.Get("/{asset_id}/temporary-url", h.TemporaryURL)
	return r
}

// AssetResponse is the wire representation of an asset record
type AssetResponse struct {
	ID               string     `json:"id"`
	UserID           *string    `json:"user_id,omitempty"`
	GroupID          *string    `json:"group_id,omitempty"`
	ModelType        *string    `json:"model_type,omitempty"`
	ModelID          *string    `json:"model_id,omitempty"`
	StorageKey       string     `json:"storage_key"`
	MimeType         string     `json:"mime_type"`
	Extension        string     `json:"file_ext"`
	Size             int64      `json:"size"`
	Name             string     `json:"name"`
	OriginalFileName string     `json:"original_file_name"`
	Label            *string    `json:"label,omitempty"`
	Category         *string    `json:"category,omitempty"`
	Type             *int       `json:"type,omitempty"`
	SortOrder        int        `json:"sort_order"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

func toAssetResponse(a *atlasassets.Asset) AssetResponse {
	return AssetResponse{
		ID:               a.ID.String(),
		UserID:           a.UserID,
		GroupID:          a.GroupID,
		ModelType:        a.OwnerType,
		ModelID:          a.OwnerID,
		StorageKey:       a.StorageKey,
		MimeType:         a.MimeType,
		Extension:        a.Extension,
		Size:             a.Size,
		Name:             a.Name,
		OriginalFileName: a.OriginalFileName,
		Label:            a.Label,
		Category:         a.Category,
		Type:             a.Type,
		SortOrder:        a.SortOrder,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		DeletedAt:        a.DeletedAt,
	}
}

// UpdateAssetRequest is the JSON body for metadata updates. Absent
// fields are left untouched; empty strings clear the column.
type UpdateAssetRequest struct {
	ModelType *string `json:"model_type,omitempty"`
	ModelID   *string `json:"model_id,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
	GroupID   *string `json:"group_id,omitempty"`
	Name      *string `json:"name,omitempty"`
	Label     *string `json:"label,omitempty"`
	Category  *string `json:"category,omitempty"`
	Type      *int    `json:"type,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
}

// Upload accepts a multipart form with a "file" part plus optional
// metadata fields and creates a new asset.
func (h *AssetsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Error("failed to parse multipart form", "error", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := atlasassets.UploadRequest{
		File: atlasassets.FileUpload{
			Reader:   file,
			FileName: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
		},
		UserID:   formValue(r, "user_id"),
		GroupID:  formValue(r, "group_id"),
		Name:     formValue(r, "name"),
		Label:    formValue(r, "label"),
		Category: formValue(r, "category"),
	}

	if mt, mid := formValue(r, "model_type"), formValue(r, "model_id"); mt != nil || mid != nil {
		owner := atlasassets.OwnerRef{}
		if mt != nil {
			owner.Type = *mt
		}
		if mid != nil {
			owner.ID = *mid
		}
		req.Owner = &owner
	}

	if typ, err := formInt(r, "type"); err != nil {
		http.Error(w, "invalid type", http.StatusBadRequest)
		return
	} else {
		req.Type = typ
	}

	if order, err := formInt(r, "sort_order"); err != nil {
		http.Error(w, "invalid sort_order", http.StatusBadRequest)
		return
	} else {
		req.SortOrder = order
	}

	asset, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("asset uploaded", "asset_id", asset.ID, "storage_key", asset.StorageKey)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAssetResponse(asset))
}

// Get returns a single asset record
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	render.JSON(w, r, toAssetResponse(asset))
}

// List returns asset records matching the query filters
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := atlasassets.ListFilters{
		UserID:   queryValue(q.Get("user_id")),
		GroupID:  queryValue(q.Get("group_id")),
		Label:    queryValue(q.Get("label")),
		Category: queryValue(q.Get("category")),
	}

	if mt, mid := q.Get("model_type"), q.Get("model_id"); mt != "" || mid != "" {
		filters.Owner = &atlasassets.OwnerRef{Type: mt, ID: mid}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filters.Limit = &limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filters.Offset = &offset
	}
	if raw := q.Get("before_id"); raw != "" {
		beforeID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid before_id", http.StatusBadRequest)
			return
		}
		filters.BeforeID = &beforeID
	}

	assets, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}

	render.JSON(w, r, map[string]interface{}{"assets": out})
}

// Update applies a metadata patch to an existing asset
func (h *AssetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	var body UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req := atlasassets.UpdateRequest{
		UserID:    body.UserID,
		GroupID:   body.GroupID,
		Name:      body.Name,
		Label:     body.Label,
		Category:  body.Category,
		Type:      body.Type,
		SortOrder: body.SortOrder,
	}
	if body.ModelType != nil || body.ModelID != nil {
		owner := atlasassets.OwnerRef{}
		if body.ModelType != nil {
			owner.Type = *body.ModelType
		}
		if body.ModelID != nil {
			owner.ID = *body.ModelID
		}
		req.Owner = &owner
	}

	asset, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	render.JSON(w, r, toAssetResponse(asset))
}

// Replace swaps the stored file of an existing asset while keeping the
// record. The request is a multipart form with a "file" part.
func (h *AssetsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	upload := atlasassets.FileUpload{
		Reader:   file,
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
	}

	asset, err := h.service.Replace(r.Context(), id, upload, atlasassets.UpdateRequest{})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("asset file replaced", "asset_id", asset.ID, "storage_key", asset.StorageKey)
	render.JSON(w, r, toAssetResponse(asset))
}

// Delete soft-deletes an asset, or removes it permanently when
// force=true is passed.
func (h *AssetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"

	if err := h.service.Delete(r.Context(), id, force); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("asset deleted", "asset_id", id, "force", force)
	w.WriteHeader(http.StatusNoContent)
}

// Purge permanently removes soft-deleted assets and their blobs
func (h *AssetsHandler) Purge(w http.ResponseWriter, r *http.Request) {
	batchSize := 100
	if raw := r.URL.Query().Get("batch_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid batch_size", http.StatusBadRequest)
			return
		}
		batchSize = parsed
	}

	purged, err := h.service.Purge(r.Context(), batchSize)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("assets purged", "count", purged)
	render.JSON(w, r, map[string]int{"purged": purged})
}

// TemporaryURL returns an expiring URL for the asset's file
func (h *AssetsHandler) TemporaryURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.assetID(w, r)
	if !ok {
		return
	}

	expiresIn := 5 * time.Minute
	if raw := r.URL.Query().Get("expires_in"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 1 {
			http.Error(w, "invalid expires_in", http.StatusBadRequest)
			return
		}
		expiresIn = time.Duration(seconds) * time.Second
	}

	url, err := h.service.TemporaryURL(r.Context(), id, expiresIn)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"url": url})
}

func (h *AssetsHandler) assetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "asset_id"))
	if err != nil {
		http.Error(w, "invalid asset ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *AssetsHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, atlasassets.ErrAssetNotFound),
		errors.Is(err, atlasassets.ErrFileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, atlasassets.ErrDisallowedExtension),
		errors.Is(err, atlasassets.ErrInvalidType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, atlasassets.ErrUploadSizeExceeded):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, atlasassets.ErrDuplicateStorageKey):
		status = http.StatusConflict
	case errors.Is(err, atlasassets.ErrTemporaryURLUnsupported):
		status = http.StatusNotImplemented
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("asset request failed", "error", err)
	}

	http.Error(w, err.Error(), status)
}

func formValue(r *http.Request, key string) *string {
	if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}

func formInt(r *http.Request, key string) (*int, error) {
	raw := formValue(r, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(*raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func queryValue(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
