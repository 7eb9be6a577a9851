package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// ContentChunkSize is the number of ids sent per lookup request.
	ContentChunkSize = 80

	contentTimeout = 8 * time.Second
)

// ContentEntry is the lookup result for one map.
type ContentEntry struct {
	ID     int64    `json:"id"`
	Author string   `json:"author"`
	XML    string   `json:"xml"`
	P      *float64 `json:"p"` // nil when the service omits it
}

// ContentResponse is the aggregated lookup result. Error mirrors the
// service's own error flag.
type ContentResponse struct {
	Error bool           `json:"error"`
	Data  []ContentEntry `json:"data"`
}

// ContentClient looks up map metadata by numeric id.
type ContentClient struct {
	baseClient
	key string
}

// NewContentClient creates a client for the content lookup service.
func NewContentClient(baseURL, key string, logger *zap.Logger) (*ContentClient, error) {
	bc, err := newBaseClient(baseURL, contentTimeout, logger)
	if err != nil {
		return nil, err
	}
	return &ContentClient{baseClient: bc, key: key}, nil
}

// FetchContent looks up ids in chunks of ContentChunkSize. Non-positive ids are
// skipped. An error-flagged chunk stops the lookup and is returned as is.
func (c *ContentClient) FetchContent(ctx context.Context, ids []int64) (*ContentResponse, error) {
	valid := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			valid = append(valid, id)
		}
	}

	out := &ContentResponse{Data: []ContentEntry{}}
	for start := 0; start < len(valid); start += ContentChunkSize {
		end := min(start+ContentChunkSize, len(valid))

		parts := make([]string, 0, end-start)
		for _, id := range valid[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		// Ids are joined with literal commas.
		target := c.endpoint("mapInfo/", nil) + "?maps=" + strings.Join(parts, ",") + "&key=" + url.QueryEscape(c.key)

		status, body, err := c.get(ctx, target, nil)
		if err != nil {
			return nil, err
		}

		var chunk ContentResponse
		if err := json.Unmarshal(body, &chunk); err != nil {
			return nil, fmt.Errorf("content service returned status %d: invalid body: %w", status, err)
		}
		if chunk.Error {
			return &chunk, nil
		}
		out.Data = append(out.Data, chunk.Data...)
	}
	return out, nil
}
