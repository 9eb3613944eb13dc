package feishubot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sendRecorder registers the message-send endpoint and records each
// decoded payload, keyed by order of arrival.
type sendRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
	respond  func(payload map[string]any) map[string]any
}

func recordSends(t *testing.T, router *http.ServeMux, respond func(payload map[string]any) map[string]any) *sendRecorder {
	t.Helper()

	rec := &sendRecorder{respond: respond}
	if rec.respond == nil {
		rec.respond = func(map[string]any) map[string]any {
			return map[string]any{"code": 0, "msg": "ok", "data": map[string]any{"message_id": "om_1"}}
		}
	}

	router.HandleFunc("POST /message/v4/send/", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		rec.mu.Lock()
		rec.payloads = append(rec.payloads, payload)
		rec.mu.Unlock()

		writeJSON(t, w, rec.respond(payload))
	})

	return rec
}

func (r *sendRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *sendRecorder) chatIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.payloads))
	for i, p := range r.payloads {
		ids[i], _ = p["chat_id"].(string)
	}
	return ids
}

func TestSendText_FanOut(t *testing.T) {
	router := http.NewServeMux()
	tokenEndpoint(t, router)
	rec := recordSends(t, router, nil)

	svr := httptest.NewServer(router)
	defer svr.Close()

	c := newTestClient(t, svr.URL)

	results, err := c.SendText(context.Background(), "hello", "oc_1", "oc_2")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "oc_1", results[0].ChatID)
	assert.Equal(t, "oc_2", results[1].ChatID)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Envelope)
		assert.Equal(t, 0, r.Envelope.Code)
	}

	assert.Equal(t, 2, rec.count(), "one send per destination")
	assert.ElementsMatch(t, []string{"oc_1", "oc_2"}, rec.chatIDs())

	payload := rec.payloads[0]
	assert.Equal(t, "text", payload["msg_type"])
	assert.Equal(t, map[string]any{"text": "hello"}, payload["content"])
	assert.NotContains(t, payload, "card")
	assert.NotContains(t, payload, "update_multi")
}

func TestSendText_DefaultsToAllGroups(t *testing.T) {
	router := http.NewServeMux()
	tokenEndpoint(t, router)
	groupListEndpoint(t, router, []map[string]string{
		{"chat_id": "oc_1", "name": "engineering"},
		{"chat_id": "oc_2", "name": "random"},
	})
	rec := recordSends(t, router, nil)

	svr := httptest.NewServer(router)
	defer svr.Close()

	c := newTestClient(t, svr.URL)

	results, err := c.SendText(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"oc_1", "oc_2"}, rec.chatIDs())
}

func TestSend_PartialFailureIsolated(t *testing.T) {
	router := http.NewServeMux()
	tokenEndpoint(t, router)
	recordSends(t, router, func(payload map[string]any) map[string]any {
		if payload["chat_id"] == "oc_bad" {
			return map[string]any{"code": 1001, "msg": "bot not in chat"}
		}
		return map[string]any{"code": 0, "msg": "ok"}
	})

	svr := httptest.NewServer(router)
	defer svr.Close()

	c := newTestClient(t, svr.URL)

	results, err := c.SendText(context.Background(), "hello", "oc_good", "oc_bad")
	require.NoError(t, err, "a failing destination must not fail the whole send")
	require.Len(t, results, 2)

	assert.Equal(t, "oc_good", results[0].ChatID)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Envelope)

	assert.Equal(t, "oc_bad", results[1].ChatID)
	require.Error(t, results[1].Err)

	var reqErr *RequestError
	require.ErrorAs(t, results[1].Err, &reqErr)
	assert.Equal(t, 1001, reqErr.Code)
}

func TestSendCard_CarriesUpdateMulti(t *testing.T) {
	router := http.NewServeMux()
	tokenEndpoint(t, router)
	rec := recordSends(t, router, nil)

	svr := httptest.NewServer(router)
	defer svr.Close()

	c := newTestClient(t, svr.URL)

	card := Card{
		"config": map[string]any{"wide_screen_mode": true},
		"elements": []any{
			map[string]any{"tag": "div", "text": map[string]any{"tag": "plain_text", "content": "deploy finished"}},
		},
	}

	results, err := c.SendCard(context.Background(), card, true, "oc_1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	require.Equal(t, 1, rec.count())
	payload := rec.payloads[0]
	assert.Equal(t, "interactive", payload["msg_type"])
	assert.Equal(t, true, payload["update_multi"])
	assert.Contains(t, payload, "card")
	assert.NotContains(t, payload, "content", "card sends carry card, not content")
}

func TestSendCard_NilCardRejected(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")

	_, err := c.SendCard(context.Background(), nil, false, "oc_1")
	require.Error(t, err)
}

func TestSendPost_PayloadShape(t *testing.T) {
	router := http.NewServeMux()
	tokenEndpoint(t, router)
	rec := recordSends(t, router, nil)

	svr := httptest.NewServer(router)
	defer svr.Close()

	c := newTestClient(t, svr.URL)

	content := []PostLine{
		{
			{"tag": "text", "text": "release "},
			{"tag": "a", "text": "v1.2.3", "href": "https://example.com/release"},
		},
	}

	results, err := c.SendPost(context.Background(), "Release notes", content, "oc_1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	require.Equal(t, 1, rec.count())
	payload := rec.payloads[0]
	assert.Equal(t, "post", payload["msg_type"])

	zhCN := payload["content"].(map[string]any)["post"].(map[string]any)["zh_cn"].(map[string]any)
	assert.Equal(t, "Release notes", zhCN["title"])

	lines := zhCN["content"].([]any)
	require.Len(t, lines, 1)
	elements := lines[0].([]any)
	require.Len(t, elements, 2)
	assert.Equal(t, "text", elements[0].(map[string]any)["tag"])
}
