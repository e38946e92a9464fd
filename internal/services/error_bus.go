package services

import (
	"time"

	"github.com/huangang/promptlib/pkg/logger"
	"github.com/huangang/promptlib/pkg/response"
)

// ErrorEvent is a typed failure notification for one client session.
type ErrorEvent struct {
	Kind    response.Kind `json:"kind"`
	Op      string        `json:"op"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

// ErrorBus carries error notifications for a single client session.
// Permission-denied events raised within the grace period after the session
// started are dropped: they usually mean authorization rules for a fresh
// account have not propagated yet.
type ErrorBus struct {
	hub     *Hub[ErrorEvent]
	started time.Time
	grace   time.Duration
	now     func() time.Time
}

func NewErrorBus(grace time.Duration) *ErrorBus {
	return &ErrorBus{
		hub:     NewHub[ErrorEvent](16),
		started: time.Now(),
		grace:   grace,
		now:     time.Now,
	}
}

// Publish reports err for op. It returns false when the event was suppressed.
func (b *ErrorBus) Publish(op string, err error) bool {
	if err == nil {
		return false
	}

	kind := response.KindOf(err)
	at := b.now()
	if kind == response.KindPermissionDenied && at.Sub(b.started) < b.grace {
		logger.Debug().Str("op", op).Err(err).Msg("permission error within grace period suppressed")
		return false
	}

	logger.Warn().Str("op", op).Str("kind", string(kind)).Err(err).Msg("session error")
	b.hub.Publish(ErrorEvent{
		Kind:    kind,
		Op:      op,
		Message: err.Error(),
		At:      at,
	})
	return true
}

func (b *ErrorBus) Subscribe(clientID string) <-chan ErrorEvent {
	return b.hub.Subscribe(clientID)
}

func (b *ErrorBus) Unsubscribe(clientID string) {
	b.hub.Unsubscribe(clientID)
}

func (b *ErrorBus) Close() {
	b.hub.Close()
}
