// Package remote holds the HTTP clients for the content lookup service and
// the session service.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// baseClient carries what every service client shares.
type baseClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

func newBaseClient(rawBase string, timeout time.Duration, logger *zap.Logger) (baseClient, error) {
	if !strings.HasSuffix(rawBase, "/") {
		rawBase += "/"
	}
	u, err := url.Parse(rawBase)
	if err != nil {
		return baseClient{}, fmt.Errorf("invalid base url %q: %w", rawBase, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return baseClient{}, fmt.Errorf("invalid base url %q: missing scheme or host", rawBase)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseClient{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// endpoint resolves a relative path against the base URL.
func (c *baseClient) endpoint(path string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends req and returns the status code and body. Any status is returned
// to the caller; only transport failures are errors.
func (c *baseClient) do(req *http.Request) (int, []byte, error) {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("request done",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, body, nil
}

func (c *baseClient) get(ctx context.Context, target string, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return c.do(req)
}
