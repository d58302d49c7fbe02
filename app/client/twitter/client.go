package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"kaja/app/config"
	"net/http"
	"time"

	"github.com/samber/do"
)

type postRequest struct {
	Text string `json:"text"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	return &Client{
		cfg: do.MustInvoke[*config.Config](di),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Publish posts the given text and returns it back on success.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(postRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to encode post request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Twitter.URL+"/v1/post", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Twitter.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Twitter.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("twitter service returned status %d", resp.StatusCode)
	}

	return text, nil
}
