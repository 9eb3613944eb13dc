package feishubot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Envelope is the uniform response shape returned by every platform
// endpoint. Code and Msg are always present; Data is present only on
// success for data-bearing endpoints and is decoded lazily by the
// operation that knows its shape.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`

	// TenantAccessToken is set only by the token endpoint, which
	// reports the credential at the top level rather than under data.
	TenantAccessToken string `json:"tenant_access_token,omitempty"`
}

// do performs a single request against the platform. It attaches the
// bearer credential unless noAuth is set (auth is skipped exactly once:
// when acquiring the token itself), decodes the envelope, and maps the
// embedded status code onto the error taxonomy. An undecodable body is
// a ProtocolError and is fatal to the call.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, noAuth bool) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if !noAuth {
		token, err := c.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &ProtocolError{Endpoint: path, Err: err}
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("code", env.Code).
		Msg("platform request")

	switch {
	case env.Code == CodeCredentialInvalid:
		// The platform no longer accepts the token, which is stronger
		// than TTL expiry: drop it so the next attempt fetches fresh.
		_ = c.credentials.Invalidate(ctx, credentialKey)
		return nil, &CredentialExpiredError{RequestError{Code: env.Code, Message: env.Msg}}
	case env.Code != 0:
		return nil, &RequestError{Code: env.Code, Message: env.Msg}
	}

	return &env, nil
}

// doRetry wraps do with the credential-refresh retry policy: up to
// three attempts with a fixed delay, retrying only when the platform
// reports the credential invalid. The next attempt's token lookup
// misses the invalidated cache and fetches a fresh credential. All
// other errors are permanent at this boundary.
func (c *Client) doRetry(ctx context.Context, method, path string, body []byte, contentType string, noAuth bool) (*Envelope, error) {
	operation := func() (*Envelope, error) {
		env, err := c.do(ctx, method, path, body, contentType, noAuth)
		if err != nil {
			var expired *CredentialExpiredError
			if errors.As(err, &expired) {
				log.Debug().
					Str("path", path).
					Msg("credential rejected by platform, retrying with fresh token")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return env, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(c.maxAttempts),
	)
}

// get issues an authenticated GET against the platform.
func (c *Client) get(ctx context.Context, path string) (*Envelope, error) {
	return c.doRetry(ctx, http.MethodGet, path, nil, "", false)
}

// postJSON issues an authenticated POST with a JSON payload.
func (c *Client) postJSON(ctx context.Context, path string, payload any) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", path, err)
	}

	log.Debug().Str("path", path).RawJSON("payload", body).Msg("payload")

	return c.doRetry(ctx, http.MethodPost, path, body, contentTypeJSON, false)
}
