package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stablewatch/internal/domain/chunk"
)

var ErrNotConfigured = errors.New("detection pipeline is not configured")

// Client is the HTTP adapter for the external detection pipeline.
type Client struct {
	URL           string
	HTTP          *http.Client
	FrameInterval float64
}

// NewClient creates a detection pipeline adapter.
func NewClient(url string, timeout time.Duration, frameInterval float64) *Client {
	return &Client{
		URL:           strings.TrimSpace(url),
		HTTP:          &http.Client{Timeout: timeout},
		FrameInterval: frameInterval,
	}
}

// Enabled reports whether the detection pipeline is configured.
func (c *Client) Enabled() bool {
	return c.URL != ""
}

type analyzeRequest struct {
	ChunkID       string  `json:"chunkId"`
	StreamID      string  `json:"streamId"`
	ChunkPath     string  `json:"chunkPath"`
	ResultPath    string  `json:"resultPath"`
	FrameInterval float64 `json:"frameInterval"`
	StartOffset   int     `json:"startOffset"`
	ExtractedAt   int64   `json:"extractedAt"`
}

// Analyze posts one chunk to the detection pipeline and returns its raw
// result payload. Transient failures come back as errors; the queue owns
// retries.
func (c *Client) Analyze(ctx context.Context, ch chunk.Chunk) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	payload := analyzeRequest{
		ChunkID:       ch.ID,
		StreamID:      ch.StreamID,
		ChunkPath:     ch.Path,
		ResultPath:    strings.TrimSuffix(ch.Path, ".mp4") + ".json",
		FrameInterval: c.FrameInterval,
		StartOffset:   ch.Offset,
		ExtractedAt:   ch.ExtractedAt.Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/api/v1/analyze", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("detector error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 || !json.Valid(body) {
		return nil, errors.New("detector returned an invalid result payload")
	}
	return json.RawMessage(body), nil
}
