package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"

	DefaultRetentionDays = 30
	DefaultCleanupSpec   = "@daily"
)

// AuditEntry is one audited request.
type AuditEntry struct {
	Level     string
	Module    string
	Action    string
	Message   string
	UserID    string
	IP        string
	UserAgent string
	Extra     interface{}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// Record stores an audit entry. Failures are logged, never returned: the
// request being audited has already completed.
func (s *SystemLogService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil || s.db == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	var extraStr string
	if entry.Extra != nil {
		if b, err := json.Marshal(entry.Extra); err == nil {
			extraStr = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     entry.Level,
		Module:    entry.Module,
		Action:    entry.Action,
		Message:   entry.Message,
		UserID:    entry.UserID,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("module", entry.Module).Str("action", entry.Action).Msg("audit write failed")
	}
}

type SystemLogListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level    string `form:"level"`
	Module   string `form:"module"`
	Action   string `form:"action"`
	Search   string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

// ListForUser pages through the audit entries written on behalf of uid.
func (s *SystemLogService) ListForUser(ctx context.Context, uid string, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	logs := []models.SystemLog{}
	var total int64

	query := s.db.WithContext(ctx).Model(&models.SystemLog{}).Where("user_id = ?", uid)

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes logs older than the specified number of days
// and returns the number of deleted records.
func (s *SystemLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// LogRetentionScheduler runs CleanupOldLogs on a cron schedule.
type LogRetentionScheduler struct {
	service       *SystemLogService
	retentionDays int
	spec          string
	cron          *cron.Cron
}

// NewLogRetentionScheduler builds a scheduler; retentionDays <= 0 disables
// cleanup and an empty spec means daily.
func NewLogRetentionScheduler(service *SystemLogService, retentionDays int, spec string) *LogRetentionScheduler {
	if spec == "" {
		spec = DefaultCleanupSpec
	}
	return &LogRetentionScheduler{
		service:       service,
		retentionDays: retentionDays,
		spec:          spec,
	}
}

// Start runs one cleanup immediately, then on every tick of the schedule.
func (s *LogRetentionScheduler) Start() error {
	if s.retentionDays <= 0 {
		logger.Info().Msg("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return err
	}

	s.RunOnce()
	s.cron.Start()
	logger.Info().Str("spec", s.spec).Int("retention_days", s.retentionDays).Msg("[SystemLog] Cleanup scheduler started")
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (s *LogRetentionScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *LogRetentionScheduler) RunOnce() {
	deleted, err := s.service.CleanupOldLogs(context.Background(), s.retentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("[SystemLog] Failed to cleanup old logs")
		return
	}

	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", s.retentionDays).Msg("[SystemLog] Cleaned up old logs")
	}
}
