// Package slack posts messages to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/resilience"
)

// Message is a webhook payload. Text is the fallback shown in notifications.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a Block Kit block. Only section and divider blocks are used.
type Block struct {
	Type string `json:"type"`
	Text *Text  `json:"text,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Section returns a mrkdwn section block.
func Section(md string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: md}}
}

// Divider returns a divider block.
func Divider() Block {
	return Block{Type: "divider"}
}

// Webhook posts messages to one incoming webhook URL.
type Webhook struct {
	url  string
	http *http.Client
}

// NewWebhook creates a Webhook for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, http: &http.Client{Timeout: 10 * time.Second}}
}

// Post sends msg.
func (w *Webhook) Post(ctx context.Context, msg Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "slack: marshal message")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "slack: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "slack: post")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resilience.CheckResponse("slack", resp, body)
}
