package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/models"
	"gorm.io/gorm"
)

// DefaultFeedLimit caps owner listings to the most recent prompts.
const DefaultFeedLimit = 100

// PromptStore is the gorm-backed document store for prompts and profiles.
type PromptStore struct {
	db *gorm.DB
}

func NewPromptStore(db *gorm.DB) *PromptStore {
	return &PromptStore{db: db}
}

// ListByOwner returns the owner's prompts, newest first.
func (s *PromptStore) ListByOwner(ctx context.Context, uid string, limit int) ([]models.Prompt, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	prompts := []models.Prompt{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&prompts).Error
	if err != nil {
		return nil, err
	}
	return prompts, nil
}

// Get returns gorm.ErrRecordNotFound when id does not exist.
func (s *PromptStore) Get(ctx context.Context, id string) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&prompt).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

// Create assigns the document id and creation time before inserting.
func (s *PromptStore) Create(ctx context.Context, prompt *models.Prompt) error {
	prompt.ID = uuid.New().String()
	prompt.CreatedAt = models.Now()
	return s.db.WithContext(ctx).Create(prompt).Error
}

// Save writes every column of an existing prompt.
func (s *PromptStore) Save(ctx context.Context, prompt *models.Prompt) error {
	return s.db.WithContext(ctx).
		Model(&models.Prompt{}).
		Where("id = ?", prompt.ID).
		Select("title", "content", "tags", "is_template", "fields").
		Updates(prompt).Error
}

func (s *PromptStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Prompt{}).Error
}

// GetProfile returns gorm.ErrRecordNotFound when the owner has no profile yet.
func (s *PromptStore) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *PromptStore) HasProfile(ctx context.Context, uid string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserProfile{}).Where("uid = ?", uid).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
