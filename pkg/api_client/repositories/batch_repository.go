package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"gorm.io/gorm"
)

// ErrNotProcessing is returned when a status change targets a batch that has
// already finished.
var ErrNotProcessing = errors.New("batch is no longer processing")

type BatchRepository interface {
	Save(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	FindByVendorBatchID(ctx context.Context, vendor, batchID string) (*models.Batch, error)
	ListByUser(ctx context.Context, userID string, status *string, page, perPage int) ([]models.Batch, models.Pagination, error)
	ListProcessing(ctx context.Context, submittedBefore time.Time) ([]models.Batch, error)
	MarkComplete(ctx context.Context, id, downloadLink string, archiveKey *string) error
	MarkFailed(ctx context.Context, id, reason string) error
	Delete(ctx context.Context, id string) error
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Save(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *batchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *batchRepository) FindByVendorBatchID(ctx context.Context, vendor, batchID string) (*models.Batch, error) {
	return r.first(ctx, r.db.Where("vendor = ? AND vendor_batch_id = ?", vendor, batchID))
}

func (r *batchRepository) first(ctx context.Context, q *gorm.DB) (*models.Batch, error) {
	var batch models.Batch
	if err := q.WithContext(ctx).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ListByUser(ctx context.Context, userID string, status *string, page, perPage int) ([]models.Batch, models.Pagination, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Batch{}).Where("user_id = ?", userID)
		if status != nil && strings.TrimSpace(*status) != "" {
			q = q.Where("status = ?", strings.TrimSpace(*status))
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, models.Pagination{}, err
	}

	var batches []models.Batch
	err := scoped().Order("submitted_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&batches).Error
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return batches, buildPagination(page, perPage, total), nil
}

func (r *batchRepository) ListProcessing(ctx context.Context, submittedBefore time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Where("status = ? AND submitted_at <= ?", models.BatchProcessing, submittedBefore).
		Order("submitted_at ASC").
		Find(&batches).Error
	return batches, err
}

// MarkComplete moves a processing batch to complete and stores its link.
func (r *batchRepository) MarkComplete(ctx context.Context, id, downloadLink string, archiveKey *string) error {
	if strings.TrimSpace(downloadLink) == "" {
		return errors.New("download link is required to complete a batch")
	}
	now := time.Now()
	return r.transition(ctx, id, map[string]any{
		"status":        models.BatchComplete,
		"download_link": downloadLink,
		"archive_key":   archiveKey,
		"completed_at":  now,
	})
}

func (r *batchRepository) MarkFailed(ctx context.Context, id, reason string) error {
	now := time.Now()
	return r.transition(ctx, id, map[string]any{
		"status":         models.BatchFailed,
		"download_link":  nil,
		"failure_reason": reason,
		"completed_at":   now,
	})
}

func (r *batchRepository) transition(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Batch{}).
		Where("id = ? AND status = ?", id, models.BatchProcessing).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotProcessing
	}
	return nil
}

func (r *batchRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Batch{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
