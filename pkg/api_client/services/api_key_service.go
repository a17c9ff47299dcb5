package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
)

// ApiKeyService manages the vendor keys of portal users.
type ApiKeyService struct {
	repo    repositories.ApiKeyRepository
	vendors vendors.Registry
}

func NewApiKeyService(repo repositories.ApiKeyRepository, registry vendors.Registry) *ApiKeyService {
	return &ApiKeyService{repo: repo, vendors: registry}
}

// CreateKey asks the vendor for a new key. The plain key is only part of
// this response; afterwards only the masked form is exposed.
func (s *ApiKeyService) CreateKey(ctx context.Context, userID string, in *models.CreateApiKeyInput) (*models.CreatedApiKey, error) {
	v, err := lookupVendor(s.vendors, in.Vendor)
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = fmt.Sprintf("%s-%s", v.Name(), userID)
	}

	created, err := v.CreateKey(ctx, label)
	if err != nil {
		return nil, err
	}

	key := &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Vendor:    v.Name(),
		Label:     strings.TrimSpace(in.Label),
		Key:       created.Key,
		MaskedKey: vendors.MaskKey(created.Key),
	}
	if created.CustomerLink != "" {
		link := created.CustomerLink
		key.CustomerLink = &link
	}
	if err := s.repo.Save(ctx, key); err != nil {
		log.Printf("[keys] vendor key %s created but not stored: %v", key.MaskedKey, err)
		return nil, err
	}

	return &models.CreatedApiKey{
		ApiKeySummary: util.ToApiKeySummary(key),
		Key:           created.Key,
	}, nil
}

func (s *ApiKeyService) ListKeys(ctx context.Context, userID string) ([]models.ApiKeySummary, error) {
	keys, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ApiKeySummary, len(keys))
	for i := range keys {
		out[i] = util.ToApiKeySummary(&keys[i])
	}
	return out, nil
}

// GetKey returns one key of the user. For live-credit vendors the balance is
// refreshed; a failing refresh keeps the cached value.
func (s *ApiKeyService) GetKey(ctx context.Context, userID, id string) (*models.ApiKeySummary, error) {
	key, err := ownedKey(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	if v, err := s.vendors.Get(key.Vendor); err == nil {
		if _, err := balance(ctx, s.repo, v, key); err != nil {
			log.Printf("[keys] refreshing credits for %s failed: %v", key.ID, err)
		}
	}
	summary := util.ToApiKeySummary(key)
	return &summary, nil
}

// CreditBalance reports the usable credits of a key. Unlike GetKey a failing
// vendor lookup is returned to the caller.
func (s *ApiKeyService) CreditBalance(ctx context.Context, userID, id string) (*models.CreditBalance, error) {
	key, err := ownedKey(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	v, err := lookupVendor(s.vendors, key.Vendor)
	if err != nil {
		return nil, err
	}
	credits, err := balance(ctx, s.repo, v, key)
	if err != nil {
		return nil, err
	}
	return &models.CreditBalance{
		ApiKeyID: key.ID,
		Vendor:   key.Vendor,
		Credits:  credits,
		Live:     v.LiveCredits(),
	}, nil
}

func (s *ApiKeyService) AdminList(ctx context.Context, p *models.PageParams) ([]models.ApiKeySummary, models.Pagination, error) {
	p.Normalize()
	keys, pagination, err := s.repo.ListAll(ctx, p.Page, p.PerPage)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	out := make([]models.ApiKeySummary, len(keys))
	for i := range keys {
		out[i] = util.ToApiKeySummary(&keys[i])
	}
	return out, pagination, nil
}

func (s *ApiKeyService) AdminDelete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return problem.NewNotFound(fmt.Sprintf("api key %s not found", id))
		}
		return err
	}
	log.Printf("[admin] api key %s deleted", id)
	return nil
}

// AdminAdjustCredits corrects the local counter only; the vendor balance is
// left untouched.
func (s *ApiKeyService) AdminAdjustCredits(ctx context.Context, in *models.AdjustCreditsInput) (*models.ApiKeySummary, error) {
	if in.Amount == 0 {
		return nil, problem.NewBadRequest("amount must not be zero", problem.InvalidParam{Name: "amount", Reason: "must not be zero"})
	}
	if err := s.repo.AdjustCredits(ctx, in.ID, in.Amount); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, problem.NewNotFound(fmt.Sprintf("api key %s not found", in.ID))
		}
		return nil, err
	}
	log.Printf("[admin] credits of %s adjusted by %d: %s", in.ID, in.Amount, in.Reason)

	key, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, problem.NewNotFound(fmt.Sprintf("api key %s not found", in.ID))
	}
	summary := util.ToApiKeySummary(key)
	return &summary, nil
}
