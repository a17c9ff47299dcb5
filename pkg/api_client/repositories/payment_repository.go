package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"gorm.io/gorm"
)

// ErrNotPending is returned when a payment has already been settled.
var ErrNotPending = errors.New("payment is no longer pending")

type PaymentRepository interface {
	Save(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	FindByExternalID(ctx context.Context, gateway, externalID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]models.Payment, models.Pagination, error)
	SetExternalID(ctx context.Context, id, externalID string) error
	MarkPaid(ctx context.Context, id, externalID string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Save(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) FindByExternalID(ctx context.Context, gateway, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND external_id = ?", gateway, externalID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]models.Payment, models.Pagination, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, models.Pagination{}, err
	}

	var payments []models.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&payments).Error
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return payments, buildPagination(page, perPage, total), nil
}

func (r *paymentRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Update("external_id", externalID).Error
}

// MarkPaid settles a pending payment. A second call reports ErrNotPending so
// the caller never credits the same payment twice.
func (r *paymentRepository) MarkPaid(ctx context.Context, id, externalID string) error {
	updates := map[string]any{
		"status":  models.PaymentPaid,
		"paid_at": time.Now(),
	}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	return r.settle(ctx, id, updates)
}

func (r *paymentRepository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.settle(ctx, id, map[string]any{
		"status":         models.PaymentFailed,
		"failure_reason": reason,
	})
}

func (r *paymentRepository) settle(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}
