package services

import (
	"context"

	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserProfileService struct {
	db    *gorm.DB
	store *PromptStore
	cache TagCache
}

func NewUserProfileService(db *gorm.DB, cache TagCache) *UserProfileService {
	return &UserProfileService{db: db, store: NewPromptStore(db), cache: cache}
}

// Sync creates the caller's profile on first sight and otherwise refreshes
// the display fields and updated-at. Creation time is never rewritten.
func (s *UserProfileService) Sync(ctx context.Context, id *Identity) (*models.UserProfile, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	now := models.Now()
	profile := models.UserProfile{
		UID:         id.UID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		PhotoURL:    id.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "photo_url", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return nil, writeFault("sync user profile", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateTag(ctx, UserProfileTag(id.UID)); err != nil {
			logger.Warn().Err(err).Str("uid", id.UID).Msg("cache invalidation failed")
		}
	}

	stored, err := s.store.GetProfile(ctx, id.UID)
	if err != nil {
		return nil, writeFault("load user profile", err)
	}
	return stored, nil
}
