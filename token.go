package feishubot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	tokenPath     = "/auth/v3/app_access_token/internal/"
	credentialKey = "tenant_access_token"
)

// AccessToken returns a valid tenant access token, fetching a new one
// when the cached credential is absent or past its TTL. A RequestError
// from the token endpoint (for example a bad app secret) propagates
// unchanged: it is a distinct failure from a previously-valid token
// being rejected, and is never retried as one.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.credentials.Lookup(ctx, credentialKey, func(ctx context.Context) (string, error) {
		body, err := json.Marshal(map[string]string{
			"app_id":     c.appID,
			"app_secret": c.appSecret,
		})
		if err != nil {
			return "", fmt.Errorf("encoding token request: %w", err)
		}

		// noAuth: this is the request that obtains the credential
		env, err := c.doRetry(ctx, http.MethodPost, tokenPath, body, contentTypeJSON, true)
		if err != nil {
			return "", err
		}

		if env.TenantAccessToken == "" {
			return "", &ProtocolError{
				Endpoint: tokenPath,
				Err:      errors.New("tenant_access_token missing from response"),
			}
		}

		log.Debug().Msg("tenant access token refreshed")

		return env.TenantAccessToken, nil
	})
}
