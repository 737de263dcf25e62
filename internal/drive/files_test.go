package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFindFolder_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "name='Facturas'")
		assert.Contains(t, q, "mimeType='application/vnd.google-apps.folder'")
		assert.Contains(t, q, "trashed=false")
		writeJSON(t, w, fileListResponse{Files: []fileResource{
			{ID: "folder-1", Name: "Facturas"},
			{ID: "folder-2", Name: "Facturas"},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.FindFolder(context.Background(), "Facturas")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", id, "first match wins")
}

func TestFindFolder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, fileListResponse{})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.FindFolder(context.Background(), "Facturas")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFindFolder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.FindFolder(context.Background(), "Facturas")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body fileResource
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Facturas 2026", body.Name)
		assert.Equal(t, folderMimeType, body.MimeType)

		writeJSON(t, w, fileResource{ID: "new-folder"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.CreateFolder(context.Background(), "Facturas 2026")
	require.NoError(t, err)
	assert.Equal(t, "new-folder", id)
}

func TestFindFile_InFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "name='factura_42.json'")
		assert.Contains(t, q, "'folder-1' in parents")
		writeJSON(t, w, fileListResponse{Files: []fileResource{{ID: "file-9"}}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.FindFile(context.Background(), "factura_42.json", "folder-1")
	require.NoError(t, err)
	assert.Equal(t, "file-9", id)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `o\'brien`, escapeQuery("o'brien"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
	assert.Equal(t, "plain", escapeQuery("plain"))
}

// newUploadServer serves the resumable upload protocol: session creation
// returns a Location, chunk PUTs respond via the handler.
func newUploadServer(t *testing.T, chunkHandler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var srv *httptest.Server

	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		w.Header().Set("Location", srv.URL+"/session/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/abc", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		chunkHandler(w, r)
	})

	srv = httptest.NewServer(mux)

	return srv
}

func stageFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "staged.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestUpload_SingleChunk(t *testing.T) {
	content := `{"id":1}`

	srv := newUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
		assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content)), r.Header.Get("Content-Range"))

		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, fileResource{ID: "uploaded-1"})
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.Upload(context.Background(), "factura_1.json", "folder-1", stageFile(t, content))
	require.NoError(t, err)
	assert.Equal(t, "uploaded-1", id)
}

func TestUpload_ChunkRetriesRateLimitThenSucceeds(t *testing.T) {
	var attempts atomic.Int32

	srv := newUploadServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		writeJSON(t, w, fileResource{ID: "uploaded-2"})
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.Upload(context.Background(), "f.json", "folder-1", stageFile(t, "{}"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded-2", id)
	assert.Equal(t, int32(3), attempts.Load(), "exactly 3 transfer attempts")
}

func TestUpload_ChunkRetryCeilingExhausted(t *testing.T) {
	var attempts atomic.Int32

	srv := newUploadServer(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "f.json", "folder-1", stageFile(t, "{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, int32(3), attempts.Load(), "stops at the configured ceiling")
}

func TestUpload_ChunkNonRetryableAbortsImmediately(t *testing.T) {
	var attempts atomic.Int32

	srv := newUploadServer(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "f.json", "folder-1", stageFile(t, "{}"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestUpload_MultiChunk(t *testing.T) {
	// Two chunks: server answers 308 for the first, 200 for the last.
	big := strings.Repeat("x", uploadChunkSize+10)

	var ranges []string

	srv := newUploadServer(t, func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.Header.Get("Content-Range"))

		if len(ranges) == 1 {
			// 308 Resume Incomplete — first chunk accepted.
			w.WriteHeader(http.StatusPermanentRedirect)
			return
		}

		writeJSON(t, w, fileResource{ID: "uploaded-3"})
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	id, err := client.Upload(context.Background(), "big.json", "folder-1", stageFile(t, big))
	require.NoError(t, err)
	assert.Equal(t, "uploaded-3", id)
	require.Len(t, ranges, 2)
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", uploadChunkSize-1, len(big)), ranges[0])
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", uploadChunkSize, len(big)-1, len(big)), ranges[1])
}

func TestUpload_MissingLocationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), "f.json", "folder-1", stageFile(t, "{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestAbout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		_, _ = w.Write([]byte(`{"user":{"emailAddress":"ops@example.com"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	email, err := client.About(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", email)
}
