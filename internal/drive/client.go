package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const userAgent = "invoicedrive/0.1"

// Default API endpoints. Metadata calls and media uploads use different
// hosts, so the client carries both.
const (
	DefaultAPIBase    = "https://www.googleapis.com/drive/v3"
	DefaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per
// Go convention "accept interfaces, return structs". CredentialStore is
// the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// RetryPolicy bounds transient-failure retries. Injected rather than
// hard-coded so tests can observe attempt counts deterministically.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff returns the wait before retry number attempt (0-based).
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy retries rate-limit and server errors up to 3 attempts,
// waiting 2^attempt + 1 seconds between tries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt+1) * time.Second
		},
	}
}

// Client is an HTTP client for the Google Drive API. It handles request
// construction, authentication, retry of transient failures, and error
// classification. Authorization failures (401/403) are never retried at
// this level; the uploader owns the re-authentication cycle.
type Client struct {
	apiBase    string
	uploadBase string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	retry      RetryPolicy

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Drive API client. Empty apiBase/uploadBase fall back
// to the production endpoints.
func NewClient(apiBase, uploadBase string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	if uploadBase == "" {
		uploadBase = DefaultUploadBase
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiBase:    apiBase,
		uploadBase: uploadBase,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		retry:      DefaultRetryPolicy(),
		sleepFunc:  timeSleep,
	}
}

// SetRetryPolicy replaces the retry policy. Must be called before use.
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// do executes an HTTP request against the API, retrying transient failures.
// The url must be absolute. makeBody is invoked per attempt so a retried
// request never reuses a consumed reader. The caller closes the response
// body on success.
func (c *Client) do(ctx context.Context, method, url string, makeBody func() (io.Reader, error), contentType string) (*http.Response, error) {
	var attempt int
	for {
		body, err := makeBody()
		if err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, method, url, body, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("drive: request canceled: %w", ctx.Err())
			}

			// Network errors are transient.
			if attempt < c.retry.MaxAttempts-1 {
				if sleepErr := c.backoff(ctx, method, url, attempt, 0, nil); sleepErr != nil {
					return nil, sleepErr
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("drive: %s %s failed after %d attempts: %w", method, url, c.retry.MaxAttempts, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < c.retry.MaxAttempts-1 {
			if sleepErr := c.backoff(ctx, method, url, attempt, resp.StatusCode, resp); sleepErr != nil {
				return nil, sleepErr
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("url", url),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

// backoff logs the retry and waits. status 0 means a network error.
// For 429 responses with a Retry-After header, that value wins over
// the policy's backoff.
func (c *Client) backoff(ctx context.Context, method, url string, attempt, status int, resp *http.Response) error {
	wait := c.retry.Backoff(attempt)

	if resp != nil && status == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				wait = time.Duration(seconds) * time.Second
			}
		}
	}

	c.logger.Warn("retrying after transient failure",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
		slog.Int("attempt", attempt+1),
		slog.Duration("backoff", wait),
	)

	if err := c.sleepFunc(ctx, wait); err != nil {
		return fmt.Errorf("drive: request canceled: %w", err)
	}

	return nil
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
