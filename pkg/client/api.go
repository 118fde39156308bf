package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
)

// Login authenticates and stores the access token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.TokenResponse, error) {
	var tokens dto.TokenResponse
	err := c.Do(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Email: email, Password: password}, &tokens)
	if err != nil {
		return nil, err
	}
	c.SetToken(tokens.AccessToken)
	return &tokens, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*dto.UserResponse, error) {
	var user dto.UserResponse
	if err := c.Get(ctx, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RecentActivities returns the newest activity log entries.
func (c *Client) RecentActivities(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var entries []models.ActivityLog
	if err := c.Get(ctx, "/api/activities/recent", q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EntityHistory returns the activity recorded for one entity.
func (c *Client) EntityHistory(ctx context.Context, entityType string, id int64) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	path := fmt.Sprintf("/api/activities/entity/%s/%d", url.PathEscape(entityType), id)
	if err := c.Get(ctx, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Health returns the readiness report. A degraded server answers 503, which
// is returned as *APIError after retries.
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	var health dto.HealthResponse
	if err := c.Get(ctx, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}
