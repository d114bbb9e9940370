// Package api is a client for the TokenKeeper HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Error is a non-2xx response. Message is the server's "message" field.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Is lets callers match the common sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case common.ErrorValidation:
		return e.Status == http.StatusBadRequest
	case common.ErrorAlreadyExists:
		return e.Status == http.StatusConflict
	case common.ErrorUnauthorized:
		return e.Status == http.StatusUnauthorized
	case common.ErrorForbidden:
		return e.Status == http.StatusForbidden
	case common.ErrorInternal:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/register", "", credentials{username, password}, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	var t Tokens
	if err := c.do(ctx, http.MethodPost, "/login", "", credentials{username, password}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// WhoAmI calls the protected endpoint with access and returns the identity
// it carries.
func (c *Client) WhoAmI(ctx context.Context, access string) (*Profile, error) {
	var out struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/protected", access, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Refresh(ctx context.Context, refresh string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/token", "", refreshBody{refresh}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) Logout(ctx context.Context, refresh string) error {
	return c.do(ctx, http.MethodPost, "/logout", "", refreshBody{refresh}, nil)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var m struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &m) == nil {
			apiErr.Message = m.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(errors.New("decoding response"), err)
	}
	return nil
}
