package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-labs/atlas-assets/pkg/atlasassets"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/assetpath"
	"github.com/atlas-labs/atlas-assets/pkg/atlasassets/repo/memory"
	memorystorage "github.com/atlas-labs/atlas-assets/pkg/atlasassets/storage/memory"
)

func newTestHandler(t *testing.T, opts ...atlasassets.Option) *AssetsHandler {
	t.Helper()

	resolver, err := assetpath.NewPatternResolver("{model_type}/{model_id}/{file_name}_{random}.{extension}")
	require.NoError(t, err)

	options := append([]atlasassets.Option{
		atlasassets.WithRepository(memory.New()),
		atlasassets.WithBlobStore(memorystorage.New()),
		atlasassets.WithPathResolver(resolver),
	}, opts...)

	svc, err := atlasassets.New(options...)
	require.NoError(t, err)

	return NewAssetsHandler(svc, nil)
}

func multipartUpload(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, handler *AssetsHandler, fileName, content string, fields map[string]string) AssetResponse {
	t.Helper()

	body, contentType := multipartUpload(t, fileName, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	resp := doUpload(t, handler, "Report.pdf", "pdf-bytes", map[string]string{
		"model_type": "invoice",
		"model_id":   "42",
		"label":      "contract",
	})

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Report.pdf", resp.Name)
	assert.Equal(t, "pdf", resp.Extension)
	require.NotNil(t, resp.Label)
	assert.Equal(t, "contract", *resp.Label)
	require.NotNil(t, resp.ModelType)
	assert.Equal(t, "invoice", *resp.ModelType)
	assert.True(t, strings.HasPrefix(resp.StorageKey, "invoice/42/report_"))
}

func TestUploadEndpointValidation(t *testing.T) {
	t.Run("missing file part", func(t *testing.T) {
		handler := newTestHandler(t)

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("label", "x"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()

		handler.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid type tag", func(t *testing.T) {
		handler := newTestHandler(t)

		body, contentType := multipartUpload(t, "a.txt", "x", map[string]string{"type": "999"})
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		handler := newTestHandler(t, atlasassets.WithUploadGuard(atlasassets.GuardConfig{
			BlockedExtensions: []string{"exe"},
		}))

		body, contentType := multipartUpload(t, "tool.exe", "mz", nil)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("oversized upload", func(t *testing.T) {
		handler := newTestHandler(t, atlasassets.WithUploadGuard(atlasassets.GuardConfig{MaxSize: 2}))

		body, contentType := multipartUpload(t, "big.txt", "12345", nil)
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestGetEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	uploaded := doUpload(t, handler, "item.txt", "x", nil)

	req := httptest.NewRequest(http.MethodGet, "/"+uploaded.ID, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uploaded.ID, resp.ID)

	t.Run("invalid id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/0190fa00-0000-7000-8000-000000000000", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	for i := 0; i < 3; i++ {
		doUpload(t, handler, fmt.Sprintf("f%d.txt", i), "x", map[string]string{
			"model_type": "post",
			"model_id":   "9",
		})
	}
	doUpload(t, handler, "other.txt", "x", nil)

	req := httptest.NewRequest(http.MethodGet, "/?model_type=post&model_id=9", nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Assets []AssetResponse `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Assets, 3)

	t.Run("limit is honored", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=2", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Assets, 2)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=nope", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	uploaded := doUpload(t, handler, "patch.txt", "x", nil)

	payload := `{"label":"updated","sort_order":5}`
	req := httptest.NewRequest(http.MethodPatch, "/"+uploaded.ID, strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Label)
	assert.Equal(t, "updated", *resp.Label)
	assert.Equal(t, 5, resp.SortOrder)
}

func TestReplaceEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	uploaded := doUpload(t, handler, "v1.txt", "one", nil)

	body, contentType := multipartUpload(t, "v2.txt", "twotwo", nil)
	req := httptest.NewRequest(http.MethodPost, "/"+uploaded.ID+"/replace", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uploaded.ID, resp.ID)
	assert.Equal(t, "v2.txt", resp.OriginalFileName)
	assert.Equal(t, int64(len("twotwo")), resp.Size)
	assert.NotEqual(t, uploaded.StorageKey, resp.StorageKey)
}

func TestDeleteAndPurgeEndpoints(t *testing.T) {
	handler := newTestHandler(t)
	uploaded := doUpload(t, handler, "del.txt", "x", nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/"+uploaded.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Soft-deleted records are gone from retrieval.
	rec = httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+uploaded.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/purge?batch_size=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var purge map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &purge))
	assert.Equal(t, 1, purge["purged"])
}

func TestForceDeleteEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	uploaded := doUpload(t, handler, "force.txt", "x", nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/"+uploaded.ID+"?force=true", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/purge", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var purge map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &purge))
	assert.Equal(t, 0, purge["purged"])
}

func TestTemporaryURLEndpoint(t *testing.T) {
	t.Run("unsupported without signer", func(t *testing.T) {
		handler := newTestHandler(t)
		uploaded := doUpload(t, handler, "tmp.txt", "x", nil)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+uploaded.ID+"/temporary-url", nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("signed fallback", func(t *testing.T) {
		signer := newTestSigner()
		handler := newTestHandler(t, atlasassets.WithStreamURLSigner(signer))
		uploaded := doUpload(t, handler, "tmp.txt", "x", nil)

		rec := httptest.NewRecorder()
		handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+uploaded.ID+"/temporary-url?expires_in=60", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["url"], uploaded.ID)
		assert.Contains(t, resp["url"], "signature=")
	})
}
