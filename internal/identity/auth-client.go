package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AuthClient talks to the party service's REST auth endpoints.
type AuthClient struct {
	baseURL string
	client  *http.Client
}

func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *AuthClient) Login(ctx context.Context, email, password string) (Identity, error) {
	var resp loginResponse
	if err := c.post(ctx, "/api/v1/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:       resp.ID,
		Username: resp.Username,
		Email:    resp.Email,
		Token:    resp.Token,
	}, nil
}

func (c *AuthClient) Register(ctx context.Context, email, username, password string) (Identity, error) {
	var resp loginResponse
	if err := c.post(ctx, "/api/v1/register", registerRequest{Email: email, Username: username, Password: password}, &resp); err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:       resp.ID,
		Username: resp.Username,
		Email:    resp.Email,
		Token:    resp.Token,
	}, nil
}

func (c *AuthClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s: %s", path, errResp.Error)
		}
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
