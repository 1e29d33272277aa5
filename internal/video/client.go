// Package video talks to the external video-call platform. The portal only
// hands over a meeting reference for room provisioning; everything else
// about the call lives on the platform side.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Provisioner is what the instant-consult service needs from the platform.
type Provisioner interface {
	Provision(ctx context.Context, meetingRef string) error
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type provisionRequest struct {
	Room string `json:"room"`
}

func (c *Client) Provision(ctx context.Context, meetingRef string) error {
	body, err := json.Marshal(provisionRequest{Room: meetingRef})
	if err != nil {
		return fmt.Errorf("marshal provision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build provision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provision meeting room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provision meeting room: status %d: %s", resp.StatusCode, payload)
	}

	c.log.Debug().Str("meeting_ref", meetingRef).Msg("meeting room provisioned")
	return nil
}

// Noop stands in when no video platform is configured, e.g. local dev.
type Noop struct{}

func (Noop) Provision(ctx context.Context, meetingRef string) error { return nil }
