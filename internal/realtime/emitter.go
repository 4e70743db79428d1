// Package realtime bridges notifications to the platform's in-app socket
// gateway. This is a secondary, best-effort channel: there is no
// acknowledgment contract, and failures are logged by the caller and never
// escalate a dispatch to an error.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Emitter pushes an event to a set of addressable recipients.
type Emitter interface {
	Emit(ctx context.Context, userIDs []string, event, message string, data map[string]string) error
}

// Gateway emits events by POSTing to the chat/realtime service's internal
// broadcast endpoint.
type Gateway struct {
	url    string
	client *http.Client
}

// NewGateway returns a Gateway, or nil when url is empty (channel disabled).
func NewGateway(url string) *Gateway {
	if url == "" {
		return nil
	}
	return &Gateway{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type emitRequest struct {
	UserIDs []string          `json:"userIds"`
	Event   string            `json:"event"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// Emit broadcasts one event. Nil-safe: a disabled gateway is a no-op.
func (g *Gateway) Emit(ctx context.Context, userIDs []string, event, message string, data map[string]string) error {
	if g == nil {
		return nil
	}
	body, err := json.Marshal(emitRequest{
		UserIDs: userIDs,
		Event:   event,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("encode emit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build emit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("emit %s: gateway returned %d", event, resp.StatusCode)
	}
	return nil
}
