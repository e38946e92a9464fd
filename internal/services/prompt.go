package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/huangang/promptlib/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PromptService is the only writer of prompts. Every mutation checks the
// caller's identity, enforces ownership, then invalidates cached reads and
// tells the realtime feed the owner's list changed.
type PromptService struct {
	store    *PromptStore
	cache    TagCache
	notifier Notifier
}

func NewPromptService(store *PromptStore, cache TagCache, notifier Notifier) *PromptService {
	return &PromptService{
		store:    store,
		cache:    cache,
		notifier: notifier,
	}
}

func (s *PromptService) Create(ctx context.Context, id *Identity, in PromptInput) (*models.Prompt, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	in, err := ValidatePrompt(in)
	if err != nil {
		return nil, err
	}

	prompt := &models.Prompt{
		Title:      in.Title,
		Content:    in.Content,
		Tags:       datatypes.JSONSlice[string](in.Tags),
		UserID:     id.UID,
		IsTemplate: in.IsTemplate,
		Fields:     datatypes.JSONSlice[models.PromptField](in.Fields),
	}
	if err := s.store.Create(ctx, prompt); err != nil {
		return nil, writeFault("create prompt", err)
	}

	s.revalidate(ctx, id.UID, "")
	logger.Info().Str("prompt_id", prompt.ID).Str("uid", id.UID).Msg("prompt created")
	return prompt, nil
}

func (s *PromptService) Update(ctx context.Context, id *Identity, promptID string, patch PromptPatch) (*models.Prompt, error) {
	prompt, err := s.loadOwned(ctx, id, promptID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return prompt, nil
	}

	in, err := ValidatePrompt(patch.Apply(prompt))
	if err != nil {
		return nil, err
	}

	prompt.Title = in.Title
	prompt.Content = in.Content
	prompt.Tags = datatypes.JSONSlice[string](in.Tags)
	prompt.IsTemplate = in.IsTemplate
	prompt.Fields = datatypes.JSONSlice[models.PromptField](in.Fields)

	if err := s.store.Save(ctx, prompt); err != nil {
		return nil, writeFault("update prompt", err)
	}

	s.revalidate(ctx, id.UID, prompt.ID)
	logger.Info().Str("prompt_id", prompt.ID).Str("uid", id.UID).Msg("prompt updated")
	return prompt, nil
}

func (s *PromptService) Delete(ctx context.Context, id *Identity, promptID string) error {
	prompt, err := s.loadOwned(ctx, id, promptID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, prompt.ID); err != nil {
		return writeFault("delete prompt", err)
	}

	s.revalidate(ctx, id.UID, prompt.ID)
	logger.Info().Str("prompt_id", prompt.ID).Str("uid", id.UID).Msg("prompt deleted")
	return nil
}

// loadOwned fetches promptID and checks that id owns it.
func (s *PromptService) loadOwned(ctx context.Context, id *Identity, promptID string) (*models.Prompt, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	prompt, err := s.store.Get(ctx, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("prompt not found")
		}
		return nil, writeFault("load prompt", err)
	}
	if prompt.UserID != id.UID {
		return nil, response.NewUnauthorized("you do not own this prompt")
	}
	return prompt, nil
}

// revalidate drops cached reads for the owner's list and, when promptID is
// set, for that prompt, then notifies realtime subscribers.
func (s *PromptService) revalidate(ctx context.Context, uid, promptID string) {
	tags := []string{PromptsUserTag(uid)}
	if promptID != "" {
		tags = append(tags, PromptTag(promptID))
	}
	if s.cache != nil {
		for _, tag := range tags {
			if err := s.cache.InvalidateTag(ctx, tag); err != nil {
				logger.Warn().Err(err).Str("tag", tag).Msg("cache invalidation failed")
			}
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, uid); err != nil {
			logger.Warn().Err(err).Str("uid", uid).Msg("feed notification failed")
		}
	}
}

// writeFault wraps a store failure on a write path and reports it.
func writeFault(op string, err error) error {
	logger.Error().Err(err).Str("op", op).Msg("write failed")
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.CaptureException(fmt.Errorf("%s: %w", op, err))
	}
	return response.NewServerError(fmt.Sprintf("failed to %s", op))
}
