package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/devilmonastery/gatekeeper/internal/domain/entities"
)

// LoginResult is the server's answer to a successful password login
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Account   *entities.Account `json:"account"`
}

// TokenInfo describes the presented bearer token as the server sees it
type TokenInfo struct {
	AccountID   string `json:"account_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	TokenID     string `json:"token_id"`
}

// Provider is a login provider configured on the server
type Provider struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ListAccountsOptions filters and pages an account listing
type ListAccountsOptions struct {
	Limit    int
	Offset   int
	Role     string
	Disabled *bool
	Search   string
}

// ListSessionsOptions filters and pages a session listing
type ListSessionsOptions struct {
	Limit      int
	Offset     int
	AccountID  string
	ActiveOnly bool
}

// Login exchanges a username and password for an API token.
// Only local password accounts can log in this way.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	req := map[string]string{
		"username": username,
		"password": password,
	}

	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CurrentToken asks the server to introspect the presented token
func (c *Client) CurrentToken(ctx context.Context) (*TokenInfo, error) {
	var result TokenInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProviders returns the login providers configured on the server
func (c *Client) ListProviders(ctx context.Context) ([]Provider, error) {
	var result struct {
		Providers []Provider `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/providers", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Providers, nil
}

// ListAccounts returns a page of accounts and the total match count
func (c *Client) ListAccounts(ctx context.Context, opts ListAccountsOptions) ([]entities.Account, int64, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Role != "" {
		query.Set("role", opts.Role)
	}
	if opts.Disabled != nil {
		query.Set("disabled", strconv.FormatBool(*opts.Disabled))
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}

	var result struct {
		Accounts []entities.Account `json:"accounts"`
		Total    int64              `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts", query, nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Accounts, result.Total, nil
}

// GetAccount returns one account with its linked identities
func (c *Client) GetAccount(ctx context.Context, id string) (*entities.Account, error) {
	var result struct {
		Account *entities.Account `json:"account"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(id), nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Account, nil
}

// DisableAccount disables an account and stops its sessions validating
func (c *Client) DisableAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/accounts/"+url.PathEscape(id)+"/disable", nil, nil, nil)
}

// ListSessions returns sessions, optionally narrowed to one account
func (c *Client) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]entities.Session, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.AccountID != "" {
		query.Set("account_id", opts.AccountID)
	}
	if opts.ActiveOnly {
		query.Set("active", "true")
	}

	var result struct {
		Sessions []entities.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// RevokeSession revokes one browser session by ID
func (c *Client) RevokeSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+url.PathEscape(id), nil, nil, nil)
}

// RevokeAccountSessions revokes every session for one account and
// returns how many were revoked
func (c *Client) RevokeAccountSessions(ctx context.Context, accountID string) (int64, error) {
	query := url.Values{}
	query.Set("account_id", accountID)

	var result struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/sessions", query, nil, &result); err != nil {
		return 0, err
	}
	return result.Revoked, nil
}
