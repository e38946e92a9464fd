package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/huangang/promptlib/pkg/response"
)

var (
	// ErrFallbackNotNeeded is returned by Refetch when a server snapshot was obtained.
	ErrFallbackNotNeeded = errors.New("server snapshot present, fallback fetch skipped")
	ErrFallbackInFlight  = errors.New("fallback fetch already running")
	ErrViewStarted       = errors.New("view already started")
	ErrViewClosed        = errors.New("view closed")
)

// Snapshot is the optional server-rendered listing. An obtained snapshot may be empty.
type Snapshot struct {
	prompts []models.Prompt
	ok      bool
}

func SnapshotOf(prompts []models.Prompt) Snapshot {
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	return Snapshot{prompts: prompts, ok: true}
}

func NoSnapshot() Snapshot {
	return Snapshot{}
}

// Get returns the listing and whether the snapshot was obtained.
func (s Snapshot) Get() ([]models.Prompt, bool) {
	return s.prompts, s.ok
}

// FallbackFunc fetches the owner's listing on demand.
type FallbackFunc func(ctx context.Context, uid string) ([]models.Prompt, error)

type ViewStatus string

const (
	ViewLoading ViewStatus = "loading"
	ViewReady   ViewStatus = "ready"
)

type ViewSource string

const (
	SourceNone     ViewSource = ""
	SourceRealtime ViewSource = "realtime"
	SourceSnapshot ViewSource = "snapshot"
	SourceFallback ViewSource = "fallback"
)

// ViewState is what the client renders.
type ViewState struct {
	Status  ViewStatus      `json:"status"`
	Source  ViewSource      `json:"source,omitempty"`
	Prompts []models.Prompt `json:"prompts"`
	Tags    []string        `json:"tags"`
	Error   *ErrorEvent     `json:"error,omitempty"`
}

// ViewOptions tunes timing. Zero values take the defaults.
type ViewOptions struct {
	ActionTimeout     time.Duration
	PermissionRetries int
	RetryBase         time.Duration
}

func (o ViewOptions) withDefaults() ViewOptions {
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.PermissionRetries <= 0 {
		o.PermissionRetries = 5
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 1500 * time.Millisecond
	}
	return o
}

// PromptView reconciles the server snapshot, the realtime feed and the
// fallback fetch into one listing for a single owner. It owns exactly one
// feed subscription, which Close tears down together with pending retries.
type PromptView struct {
	uid      string
	snapshot Snapshot
	feed     FeedSource
	fallback FallbackFunc
	errs     *ErrorBus
	opts     ViewOptions

	mu              sync.Mutex
	feedPrompts     []models.Prompt
	feedReady       bool
	feedErr         *ErrorEvent
	fallbackPrompts []models.Prompt
	fallbackDone    bool
	fallbackRunning bool
	fallbackErr     *ErrorEvent
	started         bool
	closed          bool

	updates chan ViewState
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPromptView(uid string, snapshot Snapshot, feed FeedSource, fallback FallbackFunc, errs *ErrorBus, opts ViewOptions) *PromptView {
	if errs == nil {
		errs = NewErrorBus(0)
	}
	return &PromptView{
		uid:      uid,
		snapshot: snapshot,
		feed:     feed,
		fallback: fallback,
		errs:     errs,
		opts:     opts.withDefaults(),
		updates:  make(chan ViewState, 1),
	}
}

func (v *PromptView) Owner() string {
	return v.uid
}

// NeedsFallback reports whether the snapshot path was skipped entirely.
func (v *PromptView) NeedsFallback() bool {
	_, ok := v.snapshot.Get()
	return !ok
}

// Start opens the feed subscription. It may be called once.
func (v *PromptView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.started {
		v.mu.Unlock()
		return ErrViewStarted
	}
	v.started = true
	ctx, v.cancel = context.WithCancel(ctx)
	v.publishLocked()
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.watch(ctx)
	}()
	return nil
}

func (v *PromptView) watch(ctx context.Context) {
	err := retry.Do(
		func() error {
			return v.feed.Watch(ctx, v.uid, v.applyBatch)
		},
		retry.Context(ctx),
		retry.Attempts(uint(v.opts.PermissionRetries+1)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return v.opts.RetryBase * time.Duration(n)
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, response.ErrPermissionDenied)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Str("uid", v.uid).Uint("attempt", n+1).Err(err).Msg("feed permission denied, retrying")
		}),
		retry.LastErrorOnly(true),
	)
	if err == nil || ctx.Err() != nil {
		return
	}

	v.errs.Publish("watchPrompts", err)
	v.mu.Lock()
	v.feedErr = errorEvent("watchPrompts", err)
	v.publishLocked()
	v.mu.Unlock()
}

func (v *PromptView) applyBatch(prompts []models.Prompt) {
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feedPrompts = prompts
	v.feedReady = true
	v.feedErr = nil
	v.publishLocked()
}

// Refetch runs the fallback fetch under the action timeout. It is refused
// when a server snapshot was obtained. A failed fetch still completes the
// fallback with an empty listing; the error is returned and published.
func (v *PromptView) Refetch(ctx context.Context) error {
	if !v.NeedsFallback() {
		return ErrFallbackNotNeeded
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.fallbackRunning {
		v.mu.Unlock()
		return ErrFallbackInFlight
	}
	v.fallbackRunning = true
	v.mu.Unlock()

	prompts, err := WithTimeout(ctx, v.opts.ActionTimeout, func(ctx context.Context) ([]models.Prompt, error) {
		return v.fallback(ctx, v.uid)
	})
	if err != nil {
		prompts = []models.Prompt{}
		v.errs.Publish("fetchPrompts", err)
	}
	if prompts == nil {
		prompts = []models.Prompt{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.fallbackRunning = false
	v.fallbackDone = true
	v.fallbackPrompts = prompts
	v.fallbackErr = errorEvent("fetchPrompts", err)
	if !v.closed {
		v.publishLocked()
	}
	return err
}

// State evaluates the precedence rule: realtime, then snapshot, then fallback,
// else loading. An empty snapshot keeps the view loading until the feed
// answers, unless the feed has already failed.
func (v *PromptView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *PromptView) stateLocked() ViewState {
	snapshot, hasSnapshot := v.snapshot.Get()

	switch {
	case v.feedReady:
		return readyState(SourceRealtime, v.feedPrompts, nil)
	case hasSnapshot && (len(snapshot) > 0 || v.feedErr != nil):
		return readyState(SourceSnapshot, snapshot, v.feedErr)
	case hasSnapshot:
		return ViewState{Status: ViewLoading, Prompts: []models.Prompt{}, Tags: []string{}}
	case v.fallbackDone:
		errEv := v.fallbackErr
		if errEv == nil {
			errEv = v.feedErr
		}
		return readyState(SourceFallback, v.fallbackPrompts, errEv)
	default:
		return ViewState{Status: ViewLoading, Prompts: []models.Prompt{}, Tags: []string{}, Error: v.feedErr}
	}
}

func readyState(source ViewSource, prompts []models.Prompt, errEv *ErrorEvent) ViewState {
	return ViewState{
		Status:  ViewReady,
		Source:  source,
		Prompts: prompts,
		Tags:    AggregateTags(prompts),
		Error:   errEv,
	}
}

// Updates delivers the latest state after every change. Intermediate states
// may be skipped by a slow reader. The channel is closed by Close.
func (v *PromptView) Updates() <-chan ViewState {
	return v.updates
}

func (v *PromptView) publishLocked() {
	if v.closed {
		return
	}
	state := v.stateLocked()
	select {
	case <-v.updates:
	default:
	}
	v.updates <- state
}

// Close cancels the subscription and any scheduled retry, waits for them to
// stop and closes Updates. It is safe to call more than once.
func (v *PromptView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	cancel := v.cancel
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.wg.Wait()
	close(v.updates)
}

func errorEvent(op string, err error) *ErrorEvent {
	if err == nil {
		return nil
	}
	return &ErrorEvent{
		Kind:    response.KindOf(err),
		Op:      op,
		Message: err.Error(),
		At:      time.Now(),
	}
}
