package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client calls the IGDB v4 API, authenticating through the Twitch OAuth
// client-credentials flow.
type Client struct {
	clientID     string
	clientSecret string
	apiURL       string
	tokenURL     string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiURL:       "https://api.igdb.com/v4",
		tokenURL:     "https://id.twitch.tv/oauth2/token",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Games runs a query against the games endpoint.
func (c *Client) Games(ctx context.Context, query string) ([]Game, error) {
	var out []Game
	if err := c.query(ctx, "games", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Covers runs a query against the covers endpoint.
func (c *Client) Covers(ctx context.Context, query string) ([]Cover, error) {
	var out []Cover
	if err := c.query(ctx, "covers", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Platforms runs a query against the platforms endpoint.
func (c *Client) Platforms(ctx context.Context, query string) ([]Platform, error) {
	var out []Platform
	if err := c.query(ctx, "platforms", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Image fetches an IGDB-hosted image. Cover URLs come back scheme-relative
// ("//images.igdb.com/...") and are normalized to https.
func (c *Client) Image(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeImageURL(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func normalizeImageURL(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}

// query posts an apicalypse query body and decodes the JSON array response.
func (c *Client) query(ctx context.Context, endpoint, query string, out any) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+endpoint, strings.NewReader(query))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("igdb %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("igdb %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("igdb %s: status %d: %s", endpoint, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("igdb %s: decode response: %w", endpoint, err)
	}
	return nil
}

// bearer returns a valid OAuth token, fetching a fresh one when the cached
// token is absent or near expiry.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("oauth token: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth token: status %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("oauth token: decode response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("oauth token: empty access token")
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}
