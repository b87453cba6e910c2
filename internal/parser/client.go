package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Post is one scraped wall post
type Post struct {
	Text string `json:"text"`
	Date int64  `json:"date"`
}

// Profile is the parser service's response for one profile URL
type Profile struct {
	Success       bool            `json:"success"`
	Posts         map[string]Post `json:"posts"`
	Subscriptions []string        `json:"subscriptions"`
}

// Client talks to the external profile parser service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a parser client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Scrape requests structured post and group data for the profile URL.
// Any non-success status, malformed body or unsuccessful parse is a hard
// failure for the analysis attempt.
func (c *Client) Scrape(ctx context.Context, profileURL string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/parse?url=%s", c.baseURL, url.QueryEscape(profileURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parser request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Parser returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("profile_url", profileURL),
		)
		return nil, fmt.Errorf("parser returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode parser response: %w", err)
	}

	if !profile.Success {
		return nil, fmt.Errorf("parser could not read profile %s", profileURL)
	}

	return &profile, nil
}
