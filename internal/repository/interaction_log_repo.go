package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promora-go-api/internal/models"
)

// InteractionLogFilter narrows interaction log queries.
type InteractionLogFilter struct {
	SessionID      string
	EventType      string
	DispatchStatus string
	Page           int
	PageSize       int
}

// InteractionLogRepository persists the audit trail of tracking events.
type InteractionLogRepository interface {
	Create(ctx context.Context, entry *models.InteractionLog) error
	List(ctx context.Context, filter InteractionLogFilter) ([]models.InteractionLog, int64, error)
}

type interactionLogRepository struct {
	db *gorm.DB
}

// NewInteractionLogRepository constructs the interaction log repository.
func NewInteractionLogRepository(db *gorm.DB) InteractionLogRepository {
	return &interactionLogRepository{db: db}
}

func (r *interactionLogRepository) Create(ctx context.Context, entry *models.InteractionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *interactionLogRepository) List(ctx context.Context, filter InteractionLogFilter) ([]models.InteractionLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InteractionLog{}).Where("session_id = ?", filter.SessionID)

	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}

	if filter.DispatchStatus != "" {
		query = query.Where("dispatch_status = ?", filter.DispatchStatus)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var entries []models.InteractionLog
	if err := query.Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
