package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/logger"
)

const sseHeartbeat = 25 * time.Second

// EventsHandler streams the reconciled prompt listing of one client session
// over Server-Sent Events. Each connection owns one PromptView and one
// ErrorBus.
type EventsHandler struct {
	feed   services.FeedSource
	reader *services.PromptReader
	opts   services.ViewOptions
	grace  time.Duration
}

func NewEventsHandler(feed services.FeedSource, reader *services.PromptReader, opts services.ViewOptions, grace time.Duration) *EventsHandler {
	return &EventsHandler{feed: feed, reader: reader, opts: opts, grace: grace}
}

// StreamPrompts emits "state" events with the current view and "error"
// events for failures raised during the session.
func (h *EventsHandler) StreamPrompts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.GetUID(c)

	snapshot := services.NoSnapshot()
	if marker := middleware.PrefetchUID(c); marker != "" {
		if prompts, err := h.reader.SnapshotFor(ctx, marker); err == nil {
			snapshot = services.SnapshotOf(prompts)
		} else {
			logger.Warn().Err(err).Str("uid", marker).Msg("snapshot prefetch failed")
		}
	}

	errs := services.NewErrorBus(h.grace)
	defer errs.Close()

	clientID := uuid.New().String()
	errEvents := errs.Subscribe(clientID)
	defer errs.Unsubscribe(clientID)

	view := services.NewPromptView(uid, snapshot, h.feed, h.reader.SnapshotFor, errs, h.opts)
	if err := view.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("prompt view start failed")
		return
	}

	var fallback sync.WaitGroup
	defer fallback.Wait()
	defer view.Close()

	if view.NeedsFallback() {
		fallback.Add(1)
		go func() {
			defer fallback.Done()
			_ = view.Refetch(ctx)
		}()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	logger.Info().Str("client_id", clientID).Str("uid", uid).Bool("snapshot", !view.NeedsFallback()).Msg("SSE client connected")

	states := view.Updates()
	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-states:
			if !ok {
				return false
			}
			return writeEvent(c, w, "state", state)
		case ev, ok := <-errEvents:
			if !ok {
				return false
			}
			return writeEvent(c, w, "error", ev)
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-ctx.Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

func writeEvent(c *gin.Context, w io.Writer, name string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Str("event", name).Msg("SSE marshal error")
		return true
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	c.Writer.Flush()
	return true
}
