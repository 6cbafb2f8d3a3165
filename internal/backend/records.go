package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"myswing/internal/swing"
)

// ListAnalyses returns the user's analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, userID string, limit int) ([]*swing.Analysis, error) {
	var rows []*swing.Analysis
	r := c.request(ctx).
		SetQueryParams(map[string]string{
			"user_id": "eq." + userID,
			"select":  "*",
			"order":   "created_at.desc",
		}).
		SetResult(&rows)
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := r.Get("/rest/v1/analyses")
	if err != nil {
		return nil, fmt.Errorf("list analyses request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("list analyses", resp)
	}
	return rows, nil
}

// GetAnalysis returns nil if the analysis does not exist.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*swing.Analysis, error) {
	var rows []*swing.Analysis
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"id": "eq." + id, "select": "*"}).
		SetResult(&rows).
		Get("/rest/v1/analyses")
	if err != nil {
		return nil, fmt.Errorf("get analysis request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("get analysis", resp)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// DeleteAnalysis removes the analysis row. Row-level security limits it to
// the owner.
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	resp, err := c.request(ctx).
		SetQueryParam("id", "eq."+id).
		Delete("/rest/v1/analyses")
	if err != nil {
		return fmt.Errorf("delete analysis request failed: %w", err)
	}
	if resp.IsError() {
		return apiError("delete analysis", resp)
	}
	return nil
}

// GetProfile returns nil if the user has no profile row.
func (c *Client) GetProfile(ctx context.Context, userID string) (*swing.Profile, error) {
	var rows []*swing.Profile
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"id": "eq." + userID, "select": "*"}).
		SetResult(&rows).
		Get("/rest/v1/profiles")
	if err != nil {
		return nil, fmt.Errorf("get profile request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("get profile", resp)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateProfile patches the user's profile and returns the stored row.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update *swing.ProfileUpdate) (*swing.Profile, error) {
	var rows []*swing.Profile
	resp, err := c.request(ctx).
		SetQueryParam("id", "eq."+userID).
		SetHeader("Prefer", "return=representation").
		SetBody(update).
		SetResult(&rows).
		Patch("/rest/v1/profiles")
	if err != nil {
		return nil, fmt.Errorf("update profile request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("update profile", resp)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update profile: profile %s not found", userID)
	}
	return rows[0], nil
}

// GetUserStats calls the get_user_stats RPC. The function may return either
// a single object or a one-row set.
func (c *Client) GetUserStats(ctx context.Context, userID string) (*swing.UserStats, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"p_user_id": userID}).
		Post("/rest/v1/rpc/get_user_stats")
	if err != nil {
		return nil, fmt.Errorf("user stats request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("user stats", resp)
	}

	body := resp.Body()
	var stats swing.UserStats
	if err := json.Unmarshal(body, &stats); err == nil {
		return &stats, nil
	}
	var rows []swing.UserStats
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decoding user stats: %w", err)
	}
	if len(rows) == 0 {
		return &swing.UserStats{}, nil
	}
	return &rows[0], nil
}

var (
	_ swing.AnalysisRepository = (*Client)(nil)
	_ swing.ProfileRepository  = (*Client)(nil)
	_ swing.StatsService       = (*Client)(nil)
)
