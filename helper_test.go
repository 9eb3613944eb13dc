package feishubot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feishubot/feishubot/config"
)

// newTestClient returns a client pointed at the given test server. The
// retry delay is shortened so credential-refresh tests stay fast.
func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{
			ID:      "cli_test",
			Secret:  "test-secret",
			BaseURL: baseURL,
		},
	}

	client, err := New(cfg, opts...)
	require.NoError(t, err)

	client.retryDelay = time.Millisecond

	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	require.NoError(t, err)
}

// tokenEndpoint registers the token endpoint on the router and returns
// a call counter. Each call issues a distinct numbered token.
func tokenEndpoint(t *testing.T, router *http.ServeMux) *atomic.Int32 {
	t.Helper()

	var calls atomic.Int32
	router.HandleFunc("POST /auth/v3/app_access_token/internal/", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)

		assert.Empty(t, r.Header.Get("Authorization"), "token acquisition must not carry auth")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cli_test", body["app_id"])
		assert.Equal(t, "test-secret", body["app_secret"])

		writeJSON(t, w, map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": fmt.Sprintf("token-%d", n),
		})
	})

	return &calls
}
