package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/api_client/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newKey(userID string, credits int) *models.ApiKey {
	return &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Vendor:    models.VendorDeeep,
		Key:       "dp_live_" + uuid.NewString(),
		MaskedKey: "dp_****abcd",
		Credits:   credits,
	}
}

func newBatch(userID, keyID, vendorID string) *models.Batch {
	return &models.Batch{
		ID:            uuid.NewString(),
		Vendor:        models.VendorDeeep,
		VendorBatchID: vendorID,
		ApiKeyID:      keyID,
		UserID:        userID,
		ItemCount:     3,
		Status:        models.BatchProcessing,
		SubmittedAt:   time.Now().Add(-time.Hour),
	}
}

func TestApiKeyRepository_SaveAndAdjust(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewApiKeyRepository(db)
	ctx := context.Background()

	key := newKey("user-1", 100)
	require.NoError(t, repo.Save(ctx, key))

	require.NoError(t, repo.AdjustCredits(ctx, key.ID, -30))
	require.NoError(t, repo.AdjustCredits(ctx, key.ID, 5))

	got, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 75, got.Credits)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, repo.AdjustCredits(ctx, "nope", 1), gorm.ErrRecordNotFound)
}

func TestApiKeyRepository_ListByUserAndDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewApiKeyRepository(db)
	ctx := context.Background()

	a := newKey("user-1", 1)
	b := newKey("user-1", 2)
	c := newKey("user-2", 3)
	for _, k := range []*models.ApiKey{a, b, c} {
		require.NoError(t, repo.Save(ctx, k))
	}

	keys, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	all, pag, err := repo.ListAll(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 3, pag.TotalRecords)
	assert.Equal(t, 2, pag.TotalPages)
	require.NotNil(t, pag.Next)
	assert.Equal(t, 2, *pag.Next)

	require.NoError(t, repo.Delete(ctx, c.ID))
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), gorm.ErrRecordNotFound)
}

func TestBatchRepository_StatusIsMonotonic(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewBatchRepository(db)
	ctx := context.Background()

	batch := newBatch("user-1", "key-1", "vb-1")
	require.NoError(t, repo.Save(ctx, batch))

	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchProcessing, got.Status)
	assert.Nil(t, got.DownloadLink)

	require.NoError(t, repo.MarkComplete(ctx, batch.ID, "https://files.test/vb-1.csv", nil))

	got, err = repo.FindByVendorBatchID(ctx, models.VendorDeeep, "vb-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.BatchComplete, got.Status)
	require.NotNil(t, got.DownloadLink)
	assert.Equal(t, "https://files.test/vb-1.csv", *got.DownloadLink)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, repo.MarkFailed(ctx, batch.ID, "late failure"), repositories.ErrNotProcessing)
	assert.ErrorIs(t, repo.MarkComplete(ctx, batch.ID, "https://other", nil), repositories.ErrNotProcessing)

	got, err = repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchComplete, got.Status)
	assert.Equal(t, "https://files.test/vb-1.csv", *got.DownloadLink)
}

func TestBatchRepository_MarkCompleteRequiresLink(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewBatchRepository(db)
	ctx := context.Background()

	batch := newBatch("user-1", "key-1", "vb-2")
	require.NoError(t, repo.Save(ctx, batch))
	assert.Error(t, repo.MarkComplete(ctx, batch.ID, " ", nil))

	require.NoError(t, repo.MarkFailed(ctx, batch.ID, "vendor error"))
	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, got.Status)
	assert.Nil(t, got.DownloadLink)
	assert.Equal(t, "vendor error", got.FailureReason)
}

func TestBatchRepository_ListByUserAndProcessing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewBatchRepository(db)
	ctx := context.Background()

	one := newBatch("user-1", "key-1", "vb-a")
	two := newBatch("user-1", "key-1", "vb-b")
	other := newBatch("user-2", "key-2", "vb-c")
	for _, b := range []*models.Batch{one, two, other} {
		require.NoError(t, repo.Save(ctx, b))
	}
	require.NoError(t, repo.MarkFailed(ctx, two.ID, "x"))

	batches, pag, err := repo.ListByUser(ctx, "user-1", nil, 1, 10)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
	assert.Equal(t, 2, pag.TotalRecords)

	status := models.BatchProcessing
	batches, pag, err = repo.ListByUser(ctx, "user-1", &status, 1, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, one.ID, batches[0].ID)
	assert.Equal(t, 1, pag.TotalRecords)

	processing, err := repo.ListProcessing(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, processing, 2)
}

func TestBatchRepository_VendorBatchIDUniquePerVendor(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewBatchRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newBatch("u", "k", "same")))
	assert.Error(t, repo.Save(ctx, newBatch("u", "k", "same")))

	other := newBatch("u", "k", "same")
	other.Vendor = models.VendorInstantEmail
	assert.NoError(t, repo.Save(ctx, other))
}

func TestPaymentRepository_MarkPaidOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repositories.NewPaymentRepository(db)
	ctx := context.Background()

	p := &models.Payment{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		ApiKeyID:    "key-1",
		Gateway:     models.GatewayStripe,
		ExternalID:  "cs_test_1",
		OrderRef:    "ord-1",
		Credits:     1000,
		AmountCents: 300,
		Currency:    "usd",
		Status:      models.PaymentPending,
	}
	require.NoError(t, repo.Save(ctx, p))

	found, err := repo.FindByExternalID(ctx, models.GatewayStripe, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)

	require.NoError(t, repo.MarkPaid(ctx, p.ID, ""))
	assert.ErrorIs(t, repo.MarkPaid(ctx, p.ID, ""), repositories.ErrNotPending)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, "cs_test_1", got.ExternalID)

	list, pag, err := repo.ListByUser(ctx, "user-1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pag.TotalRecords)
}
