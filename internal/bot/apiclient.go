package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIClient submits relayed photos to the photo wall server over its
// upload endpoint.
type APIClient struct {
	baseURL string
	httpc   *http.Client
}

// NewAPIClient creates a client for the server at baseURL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// SubmitPhoto posts the submission as the JSON body the upload endpoint
// accepts from bot relays.
func (c *APIClient) SubmitPhoto(ctx context.Context, sub PhotoSubmission) error {
	body, err := json.Marshal(map[string]string{
		"nombre":   sub.SenderName,
		"telefono": sub.SenderContact,
		"texto":    sub.Caption,
		"foto":     sub.Photo,
	})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload rejected: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
