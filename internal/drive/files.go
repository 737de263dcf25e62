package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// folderMimeType identifies folders in Drive file listings.
const folderMimeType = "application/vnd.google-apps.folder"

// uploadChunkSize is the resumable upload chunk size (8 MiB). Drive
// requires all chunks except the last to be a multiple of 256 KiB.
const uploadChunkSize = 8 * 1024 * 1024

type fileResource struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

type fileListResponse struct {
	Files []fileResource `json:"files"`
}

type aboutResponse struct {
	User struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
}

// escapeQuery escapes a value for interpolation into a Drive search query
// string literal. Backslashes first, then single quotes.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}

// listFiles runs a files.list query and returns the matches.
func (c *Client) listFiles(ctx context.Context, query string) ([]fileResource, error) {
	u := fmt.Sprintf("%s/files?q=%s&fields=files(id,name)", c.apiBase, url.QueryEscape(query))

	resp, err := c.do(ctx, http.MethodGet, u, noBody, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list fileListResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&list); decErr != nil {
		return nil, fmt.Errorf("drive: decoding file list response: %w", decErr)
	}

	return list.Files, nil
}

// FindFolder looks up a non-trashed folder by exact name. Returns the ID
// of the first match, or "" when no folder with that name exists.
// Duplicate-named folders are not disambiguated; folder names are
// operator controlled.
func (c *Client) FindFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)

	folders, err := c.listFiles(ctx, query)
	if err != nil {
		return "", err
	}

	if len(folders) == 0 {
		return "", nil
	}

	c.logger.Debug("folder found",
		slog.String("name", name),
		slog.String("folder_id", folders[0].ID),
	)

	return folders[0].ID, nil
}

// CreateFolder creates a folder at the Drive root and returns its ID.
func (c *Client) CreateFolder(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(fileResource{Name: name, MimeType: folderMimeType})
	if err != nil {
		return "", fmt.Errorf("drive: marshaling create folder request: %w", err)
	}

	u := c.apiBase + "/files?fields=id"

	resp, err := c.do(ctx, http.MethodPost, u, jsonBody(body), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created fileResource
	if decErr := json.NewDecoder(resp.Body).Decode(&created); decErr != nil {
		return "", fmt.Errorf("drive: decoding create folder response: %w", decErr)
	}

	c.logger.Info("folder created",
		slog.String("name", name),
		slog.String("folder_id", created.ID),
	)

	return created.ID, nil
}

// FindFile looks up a non-trashed file by exact name inside a folder.
// Returns the ID of the first match, or "" when absent.
func (c *Client) FindFile(ctx context.Context, name, folderID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escapeQuery(name), escapeQuery(folderID))

	files, err := c.listFiles(ctx, query)
	if err != nil {
		return "", err
	}

	if len(files) == 0 {
		return "", nil
	}

	return files[0].ID, nil
}

// Upload transfers a local file into the given folder using a resumable
// upload session, sending the content in chunks. Transient chunk failures
// are retried with backoff by the client's retry policy. Returns the
// created file's ID.
func (c *Client) Upload(ctx context.Context, name, folderID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("drive: opening staging file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("drive: stat staging file: %w", err)
	}

	total := info.Size()

	sessionURL, err := c.createUploadSession(ctx, name, folderID)
	if err != nil {
		return "", err
	}

	c.logger.Debug("upload session created",
		slog.String("name", name),
		slog.Int64("size", total),
	)

	var offset int64

	buf := make([]byte, uploadChunkSize)

	for {
		n, readErr := io.ReadFull(f, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return "", fmt.Errorf("drive: reading staging file: %w", readErr)
		}

		if n == 0 {
			return "", fmt.Errorf("drive: staging file %s is empty", path)
		}

		fileID, done, chunkErr := c.uploadChunk(ctx, sessionURL, buf[:n], offset, total)
		if chunkErr != nil {
			return "", chunkErr
		}

		if done {
			c.logger.Debug("upload complete",
				slog.String("name", name),
				slog.String("file_id", fileID),
			)

			return fileID, nil
		}

		offset += int64(n)
	}
}

// createUploadSession starts a resumable upload and returns the session URL
// from the Location header.
func (c *Client) createUploadSession(ctx context.Context, name, folderID string) (string, error) {
	meta, err := json.Marshal(fileResource{Name: name, Parents: []string{folderID}})
	if err != nil {
		return "", fmt.Errorf("drive: marshaling upload metadata: %w", err)
	}

	u := c.uploadBase + "/files?uploadType=resumable"

	resp, err := c.do(ctx, http.MethodPost, u, jsonBody(meta), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Drain body to reuse the connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return "", fmt.Errorf("drive: draining session response body: %w", drainErr)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("drive: upload session response missing Location header")
	}

	return sessionURL, nil
}

// uploadChunk sends one chunk to the session URL, retrying transient
// failures per the client's retry policy. Returns done=true with the file
// ID on the final chunk (200/201); done=false on an intermediate 308.
func (c *Client) uploadChunk(ctx context.Context, sessionURL string, chunk []byte, offset, total int64) (string, bool, error) {
	contentRange := fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total)

	var attempt int
	for {
		fileID, done, err := c.sendChunk(ctx, sessionURL, chunk, contentRange)
		if err == nil {
			return fileID, done, nil
		}

		if ctx.Err() != nil {
			return "", false, fmt.Errorf("drive: chunk upload canceled: %w", ctx.Err())
		}

		var apiErr *APIError
		retryable := !errors.As(err, &apiErr) || isRetryable(apiErr.StatusCode)

		if !retryable || attempt >= c.retry.MaxAttempts-1 {
			return "", false, err
		}

		status := 0
		if apiErr != nil {
			status = apiErr.StatusCode
		}

		if sleepErr := c.backoff(ctx, http.MethodPut, sessionURL, attempt, status, nil); sleepErr != nil {
			return "", false, sleepErr
		}

		attempt++
	}
}

// sendChunk performs a single chunk PUT (no retry).
func (c *Client) sendChunk(ctx context.Context, sessionURL string, chunk []byte, contentRange string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(chunk))
	if err != nil {
		return "", false, fmt.Errorf("drive: creating chunk request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return "", false, fmt.Errorf("drive: obtaining token for chunk: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Range", contentRange)
	req.ContentLength = int64(len(chunk))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("drive: chunk upload request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		// 308 Resume Incomplete, intermediate chunk accepted.
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return "", false, fmt.Errorf("drive: draining chunk response body: %w", drainErr)
		}

		return "", false, nil

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var created fileResource
		if decErr := json.NewDecoder(resp.Body).Decode(&created); decErr != nil {
			return "", false, fmt.Errorf("drive: decoding final chunk response: %w", decErr)
		}

		return created.ID, true, nil

	default:
		errBody, _ := io.ReadAll(resp.Body)

		return "", false, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// About returns the email address of the authenticated user. Used by the
// check command to validate the connection end to end.
func (c *Client) About(ctx context.Context) (string, error) {
	u := c.apiBase + "/about?fields=user"

	resp, err := c.do(ctx, http.MethodGet, u, noBody, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var about aboutResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&about); decErr != nil {
		return "", fmt.Errorf("drive: decoding about response: %w", decErr)
	}

	return about.User.EmailAddress, nil
}

// noBody is a makeBody for requests without a payload.
func noBody() (io.Reader, error) {
	return nil, nil
}

// jsonBody returns a makeBody producing a fresh reader per attempt, so a
// retried request never reuses a consumed reader.
func jsonBody(data []byte) func() (io.Reader, error) {
	return func() (io.Reader, error) {
		return bytes.NewReader(data), nil
	}
}
