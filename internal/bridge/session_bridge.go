// Package bridge keeps the server-readable session marker in step with the
// client's identity state.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/logger"
)

const sessionPath = "/api/session"

// SessionBridge posts the signed-in uid to the session endpoint and clears
// the marker on sign-out. The marker only speeds up read-side prefetch.
type SessionBridge struct {
	baseURL string
	client  *http.Client
	timeout time.Duration

	mu      sync.Mutex
	known   bool // false until the first observation is acknowledged
	current string
}

type Option func(*SessionBridge)

// WithHTTPClient replaces the default client, which keeps cookies in a jar.
func WithHTTPClient(client *http.Client) Option {
	return func(b *SessionBridge) { b.client = client }
}

// WithTimeout bounds each request; zero keeps the default action timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *SessionBridge) { b.timeout = d }
}

func NewSessionBridge(baseURL string, opts ...Option) *SessionBridge {
	jar, _ := cookiejar.New(nil)
	b := &SessionBridge{
		baseURL: baseURL,
		client:  &http.Client{Jar: jar},
		timeout: services.DefaultActionTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Current returns the uid the marker was last set for, or "".
func (b *SessionBridge) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Observe reports the latest identity state (nil when signed out). It sets
// the marker on a sign-in or account switch and clears it on sign-out;
// repeated observations of the same state issue no requests. The first
// observation always reaches the server, so a marker left over from an
// earlier session is cleared. A failed request leaves the recorded state
// unchanged so the next call retries.
func (b *SessionBridge) Observe(ctx context.Context, id *services.Identity) error {
	uid := ""
	if id != nil {
		uid = id.UID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.known && uid == b.current:
		return nil
	case uid == "":
		if err := b.send(ctx, http.MethodDelete, nil); err != nil {
			return err
		}
		logger.Debug().Str("uid", b.current).Msg("session marker cleared")
	default:
		if err := b.send(ctx, http.MethodPost, map[string]string{"uid": uid}); err != nil {
			return err
		}
		logger.Debug().Str("uid", uid).Msg("session marker set")
	}
	b.known = true
	b.current = uid
	return nil
}

func (b *SessionBridge) send(ctx context.Context, method string, body interface{}) error {
	_, err := services.WithTimeout(ctx, b.timeout, func(ctx context.Context) (struct{}, error) {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				return struct{}{}, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+sessionPath, &buf)
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		var result struct {
			Success bool `json:"success"`
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("session %s: unexpected status %d", method, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success {
			return struct{}{}, fmt.Errorf("session %s: request not acknowledged", method)
		}
		return struct{}{}, nil
	})
	if err != nil {
		logger.Warn().Err(err).Str("method", method).Msg("session bridge request failed")
	}
	return err
}
