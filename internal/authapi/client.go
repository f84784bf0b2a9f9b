package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"linkup/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// RemoteCallError reports a failed call to the auth API. It is never retried.
type RemoteCallError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth api %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("auth api %s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Client talks to the remote authentication API over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs the client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Login exchanges credentials for a bearer token and roles.
func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "login", "/api/auth/login", "", body, &resp); err != nil {
		return models.LoginResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return models.LoginResponse{}, &RemoteCallError{Op: "login", StatusCode: resp.StatusCode, Err: remoteError(resp.Error)}
	}
	if resp.Token == "" {
		return models.LoginResponse{}, &RemoteCallError{Op: "login", StatusCode: resp.StatusCode, Err: errors.New("empty token")}
	}
	return resp, nil
}

// Register creates an account on behalf of the bearer of token.
func (c *Client) Register(ctx context.Context, token string, req models.RegisterRequest) (models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := c.post(ctx, "register", "/api/auth/register", token, req, &resp); err != nil {
		return models.StatusResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, &RemoteCallError{Op: "register", StatusCode: resp.StatusCode, Err: remoteError(resp.Error)}
	}
	return resp, nil
}

// ValidateToken asks the auth API whether token is still valid and returns
// the subject it was issued to.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	var resp models.StatusResponse
	if err := c.post(ctx, "validate-token", "/api/validate-token", token, struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", ErrInvalidToken
	}
	return Subject(token)
}

// Subject reads the sub claim without checking the signature. Signature
// checks belong to the auth API.
func Subject(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

func (c *Client) post(ctx context.Context, op, path, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("auth api call failed")
		return &RemoteCallError{Op: op, Err: err}
	}
	defer res.Body.Close()

	log.Debug().Str("op", op).Int("status", res.StatusCode).Dur("took", time.Since(start)).Msg("auth api call")

	if res.StatusCode >= http.StatusInternalServerError {
		return &RemoteCallError{Op: op, StatusCode: res.StatusCode, Err: errors.New(http.StatusText(res.StatusCode))}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if res.StatusCode != http.StatusOK {
			return &RemoteCallError{Op: op, StatusCode: res.StatusCode, Err: errors.New(http.StatusText(res.StatusCode))}
		}
		return &RemoteCallError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func remoteError(msg string) error {
	if msg == "" {
		return errors.New("request rejected")
	}
	return errors.New(msg)
}
