package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hanchul-app/koquest/koquest/config"
)

// SyncPayload carries a user's absolute gamification state to the remote
// aggregation service. Absolute values, never deltas, keep retries of the
// same payload idempotent on the remote side.
type SyncPayload struct {
	UserID         string   `json:"user_id"`
	Username       string   `json:"username,omitempty"`
	TotalXP        int64    `json:"total_xp"`
	Level          int      `json:"level"`
	AchievementIDs []string `json:"achievement_ids"`
}

type SyncResult struct {
	Rank int `json:"rank"`
}

type LeaderboardEntry struct {
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	TotalXP          int64  `json:"total_xp"`
	Level            int    `json:"level"`
	AchievementCount int    `json:"achievement_count"`
	Rank             int    `json:"rank"`
}

// RequestError is a recoverable transport or remote failure. Callers retry
// these; any other error out of this package is a local bug.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Message returns a short human-readable description for UI surfaces.
func (e *RequestError) Message() string {
	if e.StatusCode != 0 {
		return "The leaderboard service is currently unavailable."
	}
	return "Could not reach the leaderboard service. Check your connection."
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = config.RequestTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: config.NetworkDialTimeout}).DialContext,
			},
		},
	}
}

// PushState uploads the user's gamification state and returns the rank the
// remote store assigned. Transport and server failures come back as
// *RequestError; a payload that cannot be serialized is a local bug and is
// returned as a plain error.
func (c *Client) PushState(ctx context.Context, payload SyncPayload) (*SyncResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize sync payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/users/%s/gamification", c.baseURL, payload.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "sync", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{Op: "sync", StatusCode: resp.StatusCode}
	}

	var result SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RequestError{Op: "sync", Err: fmt.Errorf("decode response: %w", err)}
	}

	return &result, nil
}

// FetchLeaderboard returns the remote ranking, ordered by descending total
// XP as the remote store determines it. Tie-breaking is remote-defined and
// not reproduced here.
func (c *Client) FetchLeaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	url := fmt.Sprintf("%s/v1/leaderboard?limit=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "leaderboard", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{Op: "leaderboard", StatusCode: resp.StatusCode}
	}

	var result struct {
		Entries []*LeaderboardEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &RequestError{Op: "leaderboard", Err: fmt.Errorf("decode response: %w", err)}
	}

	return result.Entries, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
