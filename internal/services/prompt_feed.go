package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/huangang/promptlib/pkg/response"
	"github.com/redis/go-redis/v9"
)

// Notifier signals that an owner's prompt list changed.
type Notifier interface {
	Notify(ctx context.Context, uid string) error
	// Listen calls handle for every notification until ctx is done.
	Listen(ctx context.Context, handle func(uid string)) error
}

// LocalNotifier delivers notifications within the process.
type LocalNotifier struct {
	mu       sync.RWMutex
	handlers map[string]func(string)
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{handlers: make(map[string]func(string))}
}

func (n *LocalNotifier) Notify(_ context.Context, uid string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, handle := range n.handlers {
		handle(uid)
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context, handle func(uid string)) error {
	id := uuid.New().String()
	n.mu.Lock()
	n.handlers[id] = handle
	n.mu.Unlock()

	<-ctx.Done()

	n.mu.Lock()
	delete(n.handlers, id)
	n.mu.Unlock()
	return nil
}

// RedisNotifier fans notifications out to every instance over Redis pub/sub.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, channel: "promptlib:prompts-changed"}
}

func (n *RedisNotifier) Notify(ctx context.Context, uid string) error {
	return n.client.Publish(ctx, n.channel, uid).Err()
}

func (n *RedisNotifier) Listen(ctx context.Context, handle func(uid string)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg.Payload)
		}
	}
}

// FeedSource pushes complete owner listings, newest first. Watch blocks until
// ctx is done or the subscription fails; each batch replaces the previous one.
type FeedSource interface {
	Watch(ctx context.Context, uid string, onBatch func([]models.Prompt)) error
}

// PromptFeed is the realtime source of owner listings. A notification for an
// owner reloads the listing once and pushes it to every watcher of that owner.
type PromptFeed struct {
	store    *PromptStore
	notifier Notifier
	limit    int

	mu     sync.Mutex
	owners map[string]*ownerFeed
}

// ownerFeed fans one owner's listings out to its watchers. Reloads are
// numbered when they start; a reload publishes only if no reload that started
// after it has published already, so watchers never go back to an older listing.
type ownerFeed struct {
	hub     *Hub[[]models.Prompt]
	started uint64 // guarded by PromptFeed.mu

	mu        sync.Mutex
	published uint64
}

func NewPromptFeed(store *PromptStore, notifier Notifier, limit int) *PromptFeed {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &PromptFeed{
		store:    store,
		notifier: notifier,
		limit:    limit,
		owners:   make(map[string]*ownerFeed),
	}
}

// Run consumes change notifications until ctx is done.
func (f *PromptFeed) Run(ctx context.Context) error {
	return f.notifier.Listen(ctx, func(uid string) {
		f.Refresh(ctx, uid)
	})
}

// Refresh reloads uid's listing and pushes it to current watchers.
func (f *PromptFeed) Refresh(ctx context.Context, uid string) {
	if err := f.reload(ctx, uid); err != nil {
		logger.Warn().Err(err).Str("uid", uid).Msg("feed refresh failed")
	}
}

// reload loads uid's listing and publishes it unless a later reload beat it.
func (f *PromptFeed) reload(ctx context.Context, uid string) error {
	f.mu.Lock()
	owner, ok := f.owners[uid]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	owner.started++
	seq := owner.started
	f.mu.Unlock()

	prompts, err := f.store.ListByOwner(ctx, uid, f.limit)
	if err != nil {
		return err
	}

	owner.mu.Lock()
	defer owner.mu.Unlock()
	if seq > owner.published {
		owner.published = seq
		owner.hub.Publish(prompts)
	}
	return nil
}

// Watch streams uid's listing. Owners without a profile are rejected with a
// permission-denied error: their access rules are not provisioned yet.
func (f *PromptFeed) Watch(ctx context.Context, uid string, onBatch func([]models.Prompt)) error {
	if uid == "" {
		return response.NewUnauthorized("sign in required")
	}

	ok, err := f.store.HasProfile(ctx, uid)
	if err != nil {
		return err
	}
	if !ok {
		return response.NewPermissionDenied("missing or insufficient permissions")
	}

	clientID := uuid.New().String()
	batches := f.subscribe(uid, clientID)
	defer f.unsubscribe(uid, clientID)

	// The initial listing goes through the hub like any refresh, so it is
	// ordered against refreshes already in flight.
	if err := f.reload(ctx, uid); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			onBatch(batch)
		}
	}
}

// WatcherCount returns the number of active watchers of uid.
func (f *PromptFeed) WatcherCount(uid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if owner, ok := f.owners[uid]; ok {
		return owner.hub.ClientCount()
	}
	return 0
}

// TotalWatchers counts open subscriptions across all owners.
func (f *PromptFeed) TotalWatchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, owner := range f.owners {
		total += owner.hub.ClientCount()
	}
	return total
}

func (f *PromptFeed) subscribe(uid, clientID string) <-chan []models.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.owners[uid]
	if !ok {
		owner = &ownerFeed{hub: NewLatestHub[[]models.Prompt]()}
		f.owners[uid] = owner
	}
	return owner.hub.Subscribe(clientID)
}

func (f *PromptFeed) unsubscribe(uid, clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.owners[uid]
	if !ok {
		return
	}
	owner.hub.Unsubscribe(clientID)
	if owner.hub.ClientCount() == 0 {
		delete(f.owners, uid)
	}
}
