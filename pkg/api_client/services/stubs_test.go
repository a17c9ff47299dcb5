package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/payments"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/api_client/testutil"
)

// stubVendor implements vendors.Validator with overridable funcs
type stubVendor struct {
	name     string
	live     bool
	callback bool
	credits  int

	creditsErr error

	createKey  func(ctx context.Context, label string) (*vendors.CreatedKey, error)
	submit     func(ctx context.Context, apiKey string, emails []string, callbackURL string) (string, error)
	status     func(ctx context.Context, apiKey, batchID string) (*vendors.BatchStatus, error)
	download   func(ctx context.Context, apiKey, batchID string) ([]byte, error)
	addCredits func(ctx context.Context, apiKey string, amount int) error
}

func (v *stubVendor) Name() string           { return v.name }
func (v *stubVendor) LiveCredits() bool      { return v.live }
func (v *stubVendor) SupportsCallback() bool { return v.callback }

func (v *stubVendor) CreateKey(ctx context.Context, label string) (*vendors.CreatedKey, error) {
	return v.createKey(ctx, label)
}
func (v *stubVendor) Credits(ctx context.Context, apiKey string) (int, error) {
	if v.creditsErr != nil {
		return 0, v.creditsErr
	}
	return v.credits, nil
}
func (v *stubVendor) AddCredits(ctx context.Context, apiKey string, amount int) error {
	if v.addCredits != nil {
		return v.addCredits(ctx, apiKey, amount)
	}
	return nil
}
func (v *stubVendor) SubmitBatch(ctx context.Context, apiKey string, emails []string, callbackURL string) (string, error) {
	return v.submit(ctx, apiKey, emails, callbackURL)
}
func (v *stubVendor) BatchStatus(ctx context.Context, apiKey, batchID string) (*vendors.BatchStatus, error) {
	if v.status != nil {
		return v.status(ctx, apiKey, batchID)
	}
	return &vendors.BatchStatus{BatchID: batchID, Status: models.BatchProcessing}, nil
}
func (v *stubVendor) DownloadResult(ctx context.Context, apiKey, batchID string) ([]byte, error) {
	if v.download != nil {
		return v.download(ctx, apiKey, batchID)
	}
	return nil, errors.New("no result")
}

type stubCheckout struct {
	create func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
	event  *payments.CheckoutEvent
	err    error
}

func (c *stubCheckout) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return c.create(ctx, req)
}
func (c *stubCheckout) ParseEvent(payload []byte, signature string) (*payments.CheckoutEvent, error) {
	return c.event, c.err
}

type stubCard struct {
	name string
	sale func(ctx context.Context, req payments.SaleRequest) (*payments.SaleResult, error)
}

func (c *stubCard) Name() string  { return c.name }
func (c *stubCard) Enabled() bool { return true }
func (c *stubCard) Sale(ctx context.Context, req payments.SaleRequest) (*payments.SaleResult, error) {
	return c.sale(ctx, req)
}

type stubArchive struct {
	objects map[string][]byte
}

func (a *stubArchive) Enabled() bool { return true }
func (a *stubArchive) ObjectKey(vendor, batchID string) string {
	return "results/" + vendor + "/" + batchID + ".csv"
}
func (a *stubArchive) Put(_ context.Context, key string, data []byte) error {
	a.objects[key] = data
	return nil
}
func (a *stubArchive) PresignGet(_ context.Context, key string) (string, error) {
	return "https://bucket.test/" + key + "?signed", nil
}

type fixture struct {
	keys     repositories.ApiKeyRepository
	batches  repositories.BatchRepository
	payments repositories.PaymentRepository
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t)
	return &fixture{
		keys:     repositories.NewApiKeyRepository(db),
		batches:  repositories.NewBatchRepository(db),
		payments: repositories.NewPaymentRepository(db),
	}
}

func (f *fixture) addKey(t *testing.T, userID, vendor string, credits int) *models.ApiKey {
	t.Helper()
	key := &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Vendor:    vendor,
		Key:       "live_" + uuid.NewString(),
		MaskedKey: "live_****",
		Credits:   credits,
	}
	require.NoError(t, f.keys.Save(context.Background(), key))
	return key
}

func (f *fixture) credits(t *testing.T, id string) int {
	t.Helper()
	key, err := f.keys.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, key)
	return key.Credits
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr problem.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.Status, apiErr.Detail)
}
