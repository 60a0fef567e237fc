package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/promora-go-api/internal/models"
)

// RecordingChunkRepository persists metadata about stored recording chunks.
type RecordingChunkRepository interface {
	Create(ctx context.Context, chunk *models.RecordingChunk) error
	ListBySession(ctx context.Context, sessionID string) ([]models.RecordingChunk, error)
}

type recordingChunkRepository struct {
	db *gorm.DB
}

// NewRecordingChunkRepository constructs a repository for recording chunks.
func NewRecordingChunkRepository(db *gorm.DB) RecordingChunkRepository {
	return &recordingChunkRepository{db: db}
}

func (r *recordingChunkRepository) Create(ctx context.Context, chunk *models.RecordingChunk) error {
	return r.db.WithContext(ctx).Create(chunk).Error
}

func (r *recordingChunkRepository) ListBySession(ctx context.Context, sessionID string) ([]models.RecordingChunk, error) {
	var chunks []models.RecordingChunk
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence ASC").
		Find(&chunks).Error
	return chunks, err
}
