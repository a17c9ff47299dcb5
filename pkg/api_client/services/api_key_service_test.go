package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

func TestCreateKey_ReturnsPlainKeyOnce(t *testing.T) {
	f := newFixture(t)
	vendor := &stubVendor{
		name: models.VendorDeeep,
		createKey: func(ctx context.Context, label string) (*vendors.CreatedKey, error) {
			assert.Equal(t, "marketing", label)
			return &vendors.CreatedKey{Key: "dp_live_abcdef1234", CustomerLink: "https://deeep.test/c/1"}, nil
		},
	}
	svc := services.NewApiKeyService(f.keys, vendors.NewRegistry(vendor))

	created, err := svc.CreateKey(context.Background(), "user-1", &models.CreateApiKeyInput{Vendor: "deeep", Label: "marketing"})
	require.NoError(t, err)
	assert.Equal(t, "dp_live_abcdef1234", created.Key)
	assert.Equal(t, "dp_****1234", created.MaskedKey)
	require.NotNil(t, created.CustomerLink)

	keys, err := svc.ListKeys(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "dp_****1234", keys[0].MaskedKey)

	_, err = svc.CreateKey(context.Background(), "user-1", &models.CreateApiKeyInput{Vendor: "instantemail"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestGetKey_RefreshesLiveCredits(t *testing.T) {
	f := newFixture(t)
	key := f.addKey(t, "user-1", models.VendorInstantEmail, 3)
	svc := services.NewApiKeyService(f.keys, vendors.NewRegistry(&stubVendor{name: models.VendorInstantEmail, live: true, credits: 42}))

	got, err := svc.GetKey(context.Background(), "user-1", key.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Credits)
	assert.Equal(t, 42, f.credits(t, key.ID))

	_, err = svc.GetKey(context.Background(), "user-2", key.ID)
	requireStatus(t, err, http.StatusNotFound)
}

func TestCreditBalance(t *testing.T) {
	f := newFixture(t)
	live := f.addKey(t, "user-1", models.VendorInstantEmail, 3)
	cached := f.addKey(t, "user-1", models.VendorDeeep, 8)
	vendor := &stubVendor{name: models.VendorInstantEmail, live: true, credits: 40}
	svc := services.NewApiKeyService(f.keys, vendors.NewRegistry(vendor, &stubVendor{name: models.VendorDeeep}))
	ctx := context.Background()

	got, err := svc.CreditBalance(ctx, "user-1", live.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Credits)
	assert.True(t, got.Live)

	got, err = svc.CreditBalance(ctx, "user-1", cached.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Credits)
	assert.False(t, got.Live)

	vendor.creditsErr = &vendors.HTTPError{Vendor: models.VendorInstantEmail, StatusCode: http.StatusBadGateway}
	_, err = svc.CreditBalance(ctx, "user-1", live.ID)
	var httpErr *vendors.HTTPError
	require.ErrorAs(t, err, &httpErr)
}

func TestAdminKeyOperations(t *testing.T) {
	f := newFixture(t)
	key := f.addKey(t, "user-1", models.VendorDeeep, 10)
	f.addKey(t, "user-2", models.VendorDeeep, 0)
	svc := services.NewApiKeyService(f.keys, vendors.NewRegistry())
	ctx := context.Background()

	all, pag, err := svc.AdminList(ctx, &models.PageParams{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 10, pag.RecordsPerPage)

	adjusted, err := svc.AdminAdjustCredits(ctx, &models.AdjustCreditsInput{ID: key.ID, Amount: -4, Reason: "refund"})
	require.NoError(t, err)
	assert.Equal(t, 6, adjusted.Credits)

	_, err = svc.AdminAdjustCredits(ctx, &models.AdjustCreditsInput{ID: "missing", Amount: 1})
	requireStatus(t, err, http.StatusNotFound)

	require.NoError(t, svc.AdminDelete(ctx, key.ID))
	requireStatus(t, svc.AdminDelete(ctx, key.ID), http.StatusNotFound)
}
