package cli

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

// Client is a thin staff client for the zyra API.
type Client struct {
	BaseURL    string
	StaffToken string
	HTTP       *http.Client
}

func NewClient(baseURL, staffToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		StaffToken: staffToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Balance(ctx context.Context, accountID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/accounts/%d/balance", accountID), nil, &out)
	return out, err
}

func (c *Client) ApplyDelta(ctx context.Context, accountID, delta int64, reason string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, fmt.Sprintf("/v1/accounts/%d/delta", accountID), map[string]any{
		"delta":  delta,
		"reason": reason,
	}, &out)
	return out, err
}

func (c *Client) CheckAdmission(ctx context.Context, accountID, channelID int64, content string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admission/check", map[string]any{
		"account_id": accountID,
		"channel_id": channelID,
		"content":    content,
	}, &out)
	return out, err
}

func (c *Client) CreateReferralCode(ctx context.Context, ownerID int64, externalRef string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/referrals/codes", map[string]any{
		"owner_id":     ownerID,
		"external_ref": externalRef,
	}, &out)
	return out, err
}

func (c *Client) ReferralCount(ctx context.Context, referrerID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/referrals/%d/count", referrerID), nil, &out)
	return out, err
}

func (c *Client) Stock(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stock", nil, &out)
	return out, err
}

func (c *Client) Purchase(ctx context.Context, accountID int64, tier int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/purchases", map[string]any{
		"account_id": accountID,
		"tier":       tier,
	}, &out)
	return out, err
}

func (c *Client) CreateGiveaway(ctx context.Context, channelID int64, prize string, winnerCount int, duration string, createdBy int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/giveaways", map[string]any{
		"channel_id":   channelID,
		"prize":        prize,
		"winner_count": winnerCount,
		"duration":     duration,
		"created_by":   createdBy,
	}, &out)
	return out, err
}

func (c *Client) Giveaway(ctx context.Context, id int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/giveaways/%d", id), nil, &out)
	return out, err
}

func (c *Client) ResolveTier(ctx context.Context, balance int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/tiers/resolve?balance=%d", balance), nil, &out)
	return out, err
}

func (c *Client) RunCycle(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/cycles/run", nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.StaffToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.StaffToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
