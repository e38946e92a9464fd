package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"gorm.io/gorm"
)

// PromptReader serves cached reads. Read failures never propagate: callers get
// an empty or nil result and a warning is logged.
type PromptReader struct {
	store *PromptStore
	cache TagCache
	limit int
}

func NewPromptReader(store *PromptStore, cache TagCache, limit int) *PromptReader {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &PromptReader{store: store, cache: cache, limit: limit}
}

// GetPrompts returns the owner's newest prompts, or an empty list on failure.
func (r *PromptReader) GetPrompts(ctx context.Context, uid string) []models.Prompt {
	prompts, err := r.SnapshotFor(ctx, uid)
	if err != nil {
		logger.Warn().Err(err).Str("uid", uid).Msg("getPrompts failed")
		return []models.Prompt{}
	}
	return prompts
}

// SnapshotFor is GetPrompts without error tolerance, for callers that must
// know whether the listing was actually obtained.
func (r *PromptReader) SnapshotFor(ctx context.Context, uid string) ([]models.Prompt, error) {
	if uid == "" {
		return nil, errors.New("owner id is required")
	}
	return cachedRead(ctx, r.cache, "prompts:"+uid, []string{PromptsUserTag(uid)}, func() ([]models.Prompt, error) {
		return r.store.ListByOwner(ctx, uid, r.limit)
	})
}

// GetPromptByID returns nil when the prompt is missing or the read fails.
func (r *PromptReader) GetPromptByID(ctx context.Context, id string) *models.Prompt {
	prompt, err := cachedRead(ctx, r.cache, "prompt:"+id, []string{PromptTag(id)}, func() (*models.Prompt, error) {
		return r.store.Get(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Err(err).Str("prompt_id", id).Msg("getPromptById failed")
		}
		return nil
	}
	return prompt
}

// GetUserProfile returns nil when the profile is missing or the read fails.
func (r *PromptReader) GetUserProfile(ctx context.Context, uid string) *models.UserProfile {
	profile, err := cachedRead(ctx, r.cache, "profile:"+uid, []string{UserProfileTag(uid)}, func() (*models.UserProfile, error) {
		return r.store.GetProfile(ctx, uid)
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn().Err(err).Str("uid", uid).Msg("getUserProfile failed")
		}
		return nil
	}
	return profile
}

// AggregateTags returns the sorted union of the prompts' tags.
func AggregateTags(prompts []models.Prompt) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for i := range prompts {
		for _, tag := range prompts[i].TagList() {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// FilterPrompts keeps prompts carrying tag (when set) whose title or content
// contains query, case-insensitively (when set).
func FilterPrompts(prompts []models.Prompt, tag, query string) []models.Prompt {
	query = strings.ToLower(strings.TrimSpace(query))
	if tag == "" && query == "" {
		return prompts
	}

	out := make([]models.Prompt, 0, len(prompts))
	for _, p := range prompts {
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(p.Content), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func hasTag(p models.Prompt, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
