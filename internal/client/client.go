package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an HTTP client for the gatekeeper admin API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokenManager TokenManager
}

// NewClient creates a new admin API client for the given server address.
// The address may be a full URL or a bare host:port; bare addresses get
// https unless they look local. If tokenManager is nil no Authorization
// header is sent (useful for login).
func NewClient(serverAddress string, tokenManager TokenManager) (*Client, error) {
	baseURL, err := normalizeBaseURL(serverAddress)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		tokenManager: tokenManager,
	}, nil
}

// normalizeBaseURL turns a server address into a base URL with a scheme
func normalizeBaseURL(serverAddress string) (string, error) {
	address := strings.TrimSpace(serverAddress)
	if address == "" {
		return "", fmt.Errorf("server address is empty")
	}

	// Auto-detect TLS based on server address
	// Use TLS for production hosts, plain HTTP for localhost
	if !strings.Contains(address, "://") {
		if isLocalhost(address) {
			address = "http://" + address
		} else {
			address = "https://" + address
		}
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", serverAddress, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in server address", u.Scheme)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// isLocalhost checks if an address is localhost/127.0.0.1 or a cluster-internal address
func isLocalhost(address string) bool {
	lower := strings.ToLower(address)
	return strings.Contains(lower, "localhost") ||
		strings.Contains(lower, "127.0.0.1") ||
		strings.HasPrefix(lower, "::1") ||
		strings.HasPrefix(lower, "[::1]") ||
		// Kubernetes service names (no dots = internal)
		!strings.Contains(address, ".")
}

// APIError is an error response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthenticated reports whether err is a 401 from the server
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// do sends one JSON request and decodes the JSON response into out.
// Pass nil out for endpoints that answer with no body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken()
		if err != nil {
			return fmt.Errorf("authentication required: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// decodeError turns a non-2xx response into an APIError, keeping the
// server's error message when the body carries one
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}

	return apiErr
}

// Close releases idle connections held by the client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// TokenManager returns the token manager (useful for handlers)
func (c *Client) TokenManager() TokenManager {
	return c.tokenManager
}

// BaseURL returns the normalized server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}
