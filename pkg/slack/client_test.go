package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPost(t *testing.T) {
	t.Parallel()
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Post(context.Background(), Message{
		Text:   "hello",
		Blocks: []Block{Section("*bold*"), Divider()},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	require.Len(t, got.Blocks, 2)
	assert.Equal(t, "mrkdwn", got.Blocks[0].Text.Type)
	assert.Equal(t, "divider", got.Blocks[1].Type)
	assert.Nil(t, got.Blocks[1].Text)
}

func TestWebhookPost_Error(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no_service")) //nolint:errcheck
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Post(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: unexpected status 404: no_service")
}
