package repositories

import (
	"context"
	"errors"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"gorm.io/gorm"
)

type ApiKeyRepository interface {
	Save(ctx context.Context, key *models.ApiKey) error
	GetByID(ctx context.Context, id string) (*models.ApiKey, error)
	ListByUser(ctx context.Context, userID string) ([]models.ApiKey, error)
	ListAll(ctx context.Context, page, perPage int) ([]models.ApiKey, models.Pagination, error)
	AdjustCredits(ctx context.Context, id string, delta int) error
	SetCredits(ctx context.Context, id string, credits int) error
	Delete(ctx context.Context, id string) error
}

type apiKeyRepository struct {
	db *gorm.DB
}

func NewApiKeyRepository(db *gorm.DB) ApiKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Save(ctx context.Context, key *models.ApiKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

// GetByID returns nil without error when the key does not exist.
func (r *apiKeyRepository) GetByID(ctx context.Context, id string) (*models.ApiKey, error) {
	var key models.ApiKey
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepository) ListByUser(ctx context.Context, userID string) ([]models.ApiKey, error) {
	var keys []models.ApiKey
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (r *apiKeyRepository) ListAll(ctx context.Context, page, perPage int) ([]models.ApiKey, models.Pagination, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ApiKey{}).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, err
	}

	var keys []models.ApiKey
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&keys).Error
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return keys, buildPagination(page, perPage, total), nil
}

// AdjustCredits adds delta (negative to deduct) to the cached balance.
func (r *apiKeyRepository) AdjustCredits(ctx context.Context, id string, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.ApiKey{}).
		Where("id = ?", id).
		UpdateColumn("credits", gorm.Expr("credits + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *apiKeyRepository) SetCredits(ctx context.Context, id string, credits int) error {
	return r.db.WithContext(ctx).Model(&models.ApiKey{}).
		Where("id = ?", id).
		UpdateColumn("credits", credits).Error
}

func (r *apiKeyRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ApiKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
