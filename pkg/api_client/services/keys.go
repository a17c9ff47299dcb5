package services

import (
	"context"
	"fmt"
	"log"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
)

// ownedKey loads a key and hides keys of other users behind a 404.
func ownedKey(ctx context.Context, repo repositories.ApiKeyRepository, userID, id string) (*models.ApiKey, error) {
	key, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if key == nil || key.UserID != userID {
		return nil, problem.NewNotFound(fmt.Sprintf("api key %s not found", id))
	}
	return key, nil
}

func lookupVendor(registry vendors.Registry, name string) (vendors.Validator, error) {
	v, err := registry.Get(name)
	if err != nil {
		return nil, problem.NewBadRequest(fmt.Sprintf("vendor %s is not available", name))
	}
	return v, nil
}

// balance returns the usable credits of key. Live-credit vendors are asked
// directly and the local counter is refreshed with their answer.
func balance(ctx context.Context, repo repositories.ApiKeyRepository, v vendors.Validator, key *models.ApiKey) (int, error) {
	if !v.LiveCredits() {
		return key.Credits, nil
	}
	credits, err := v.Credits(ctx, key.Key)
	if err != nil {
		return 0, err
	}
	if credits != key.Credits {
		if err := repo.SetCredits(ctx, key.ID, credits); err != nil {
			log.Printf("[keys] caching credits for %s failed: %v", key.ID, err)
		}
		key.Credits = credits
	}
	return credits, nil
}
