package api_client_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	api_client "github.com/bulkverify/credits-portal/pkg/api_client"
	"github.com/bulkverify/credits-portal/pkg/api_client/handler"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
	"github.com/bulkverify/credits-portal/pkg/api_client/testutil"
	"github.com/bulkverify/credits-portal/pkg/config"
)

const (
	testSecret     = "integration-secret"
	testWebhookKey = "hook-key"
)

// fakeDeeep is a minimal DEEEP API that hands out sequential batch ids.
type fakeDeeep struct {
	mu        sync.Mutex
	submitted [][]string
}

func (f *fakeDeeep) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/partner/keys", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusCreated, map[string]string{
			"api_key":       "dk_live_abcdef123456",
			"customer_link": "https://deeep.test/c/1",
		})
	})
	mux.HandleFunc("/v1/batch/validate", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Emails []string `json:"emails"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.submitted = append(f.submitted, in.Emails)
		id := fmt.Sprintf("d-%d", len(f.submitted))
		f.mu.Unlock()
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"batch_id": id})
	})
	mux.HandleFunc("/v1/batch/", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
	})
	return mux
}

type integrationEnv struct {
	server *httptest.Server
	client *http.Client
	keys   repositories.ApiKeyRepository
	deeep  *fakeDeeep
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deeep := &fakeDeeep{}
	vendorSrv := testutil.NewTestServer(t, deeep.handler())
	registry := vendors.NewRegistry(vendors.NewDeeepClient(vendorSrv.URL, "partner"))

	db := testutil.NewTestDB(t)
	keyRepo := repositories.NewApiKeyRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)

	keySvc := services.NewApiKeyService(keyRepo, registry)
	batchSvc := services.NewBatchService(keyRepo, batchRepo, registry, nil, services.BatchServiceConfig{
		PublicURL:    "https://portal.test",
		PollAttempts: 1,
		PollInterval: time.Hour,
	})
	paymentSvc := services.NewPaymentService(paymentRepo, keyRepo, registry, nil, config.PricingConfig{
		CentsPerThousand: 300,
		MinCredits:       1000,
		Currency:         "USD",
	})

	router := api_client.NewRouter(api_client.RouterConfig{
		APIVersion:      "test-version",
		PublicURL:       "https://portal.test",
		JWTSecret:       testSecret,
		AdminRole:       "admin",
		DeeepWebhookKey: testWebhookKey,
	}, api_client.Controllers{
		Keys:     handler.NewKeysController(keySvc),
		Batches:  handler.NewBatchesController(batchSvc),
		Payments: handler.NewPaymentsController(paymentSvc),
		Webhooks: handler.NewWebhooksController(batchSvc, paymentSvc),
		Admin:    handler.NewAdminController(keySvc, batchSvc),
	})

	server := testutil.NewTestServer(t, router)
	return &integrationEnv{
		server: server,
		client: &http.Client{
			Timeout: 2 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		keys:  keyRepo,
		deeep: deeep,
	}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["app_metadata"] = map[string]any{"role": role}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *integrationEnv) do(t *testing.T, method, path, bearer string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *integrationEnv) doJSON(t *testing.T, method, path, bearer string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return e.do(t, method, path, bearer, &buf, h)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	err = json.Unmarshal(data, &out)
	require.NoErrorf(t, err, "body=%s", string(data))
	return out
}

func TestPortalFlow(t *testing.T) {
	env := newIntegrationEnv(t)
	alice := token(t, "alice", "")
	bob := token(t, "bob", "")
	admin := token(t, "ops", "admin")

	t.Run("health", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/healthz", "", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", decodeBody[models.Health](t, resp).Status)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/keys", "", nil, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		resp.Body.Close()
	})

	resp := env.doJSON(t, http.MethodPost, "/v1/keys", alice, map[string]string{"vendor": "deeep", "label": "main"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "test-version", resp.Header.Get("API-Version"))
	created := decodeBody[models.CreatedApiKey](t, resp)
	require.Equal(t, "dk_live_abcdef123456", created.Key)
	require.NotContains(t, created.MaskedKey, "abcdef")
	keyID := created.ID

	t.Run("unknown vendor is rejected by binding", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/v1/keys", alice, map[string]string{"vendor": "acme"}, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		prob := decodeBody[problem.APIError](t, resp)
		require.Equal(t, 400, prob.Status)
		require.NotEmpty(t, prob.InvalidParams)
	})

	t.Run("other users cannot see the key", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/keys/"+keyID, bob, nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("admin only", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/admin/keys", alice, nil, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	resp = env.doJSON(t, http.MethodPost, "/v1/admin/keys/"+keyID+"/credits", admin, map[string]int{"amount": 5}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 5, decodeBody[models.ApiKeySummary](t, resp).Credits)

	t.Run("not enough credits", func(t *testing.T) {
		emails := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com", "f@example.com"}
		resp := env.doJSON(t, http.MethodPost, "/v1/batches", alice, map[string]any{"apiKeyId": keyID, "emails": emails}, nil)
		require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		resp.Body.Close()
		require.Empty(t, env.deeep.submitted)
	})

	resp = env.doJSON(t, http.MethodPost, "/v1/batches", alice, map[string]any{
		"apiKeyId": keyID,
		"emails":   []string{"a@example.com", "B@example.com", "c@example.com"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	batch := decodeBody[models.BatchSummary](t, resp)
	require.Equal(t, models.BatchProcessing, batch.Status)
	require.Equal(t, "d-1", batch.BatchID)
	require.Equal(t, 3, batch.ItemCount)
	require.Nil(t, batch.DownloadLink)

	t.Run("credits deducted", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/keys/"+keyID, alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 2, decodeBody[models.ApiKeySummary](t, resp).Credits)
	})

	t.Run("credit balance", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/keys/"+keyID+"/credits", alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		bal := decodeBody[models.CreditBalance](t, resp)
		require.Equal(t, 2, bal.Credits)
		require.False(t, bal.Live)
	})

	t.Run("list batches sets pagination headers", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/batches", alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "1", resp.Header.Get("X-Total-Count"))
		list := decodeBody[[]models.BatchSummary](t, resp)
		require.Len(t, list, 1)
		require.Equal(t, batch.ID, list[0].ID)
	})

	t.Run("download before completion conflicts", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/batches/"+batch.ID+"/download", alice, nil, nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("webhook without key", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/v1/webhooks/deeep", "", map[string]string{"batch_id": "d-1"}, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("webhook for unknown batch", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/v1/webhooks/deeep", "", map[string]string{
			"batch_id":      "nope",
			"download_link": "https://files.deeep.test/nope.csv",
		}, map[string]string{"X-Webhook-Key": testWebhookKey})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	resp = env.doJSON(t, http.MethodPost, "/v1/webhooks/deeep", "", map[string]string{
		"batch_id":      "d-1",
		"download_link": "https://files.deeep.test/d-1.csv",
	}, map[string]string{"X-Webhook-Key": testWebhookKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ack := decodeBody[models.WebhookAck](t, resp)
	require.True(t, ack.Received)
	require.Equal(t, models.BatchComplete, ack.Status)

	t.Run("status is complete", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/batches/"+batch.ID, alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decodeBody[models.BatchSummary](t, resp)
		require.Equal(t, models.BatchComplete, got.Status)
		require.NotNil(t, got.DownloadLink)
		require.Equal(t, "https://files.deeep.test/d-1.csv", *got.DownloadLink)
	})

	t.Run("download redirects to the vendor file", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/batches/"+batch.ID+"/download", alice, nil, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "https://files.deeep.test/d-1.csv", resp.Header.Get("Location"))
	})

	t.Run("csv upload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("apiKeyId", keyID))
		require.NoError(t, mw.WriteField("hasHeader", "true"))
		fw, err := mw.CreateFormFile("file", "list.csv")
		require.NoError(t, err)
		_, err = io.WriteString(fw, "name,email\nx,x@example.com\ny,not-an-email\n")
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		resp := env.do(t, http.MethodPost, "/v1/batches/upload", alice, &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		got := decodeBody[models.BatchSummary](t, resp)
		require.Equal(t, "list.csv", got.FileName)
		require.Equal(t, 1, got.ItemCount)
		require.Equal(t, 1, got.InvalidCount)
		require.Equal(t, "d-2", got.BatchID)
	})

	t.Run("parse preview", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/v1/emails/parse", alice, map[string]any{
			"csv": "a@example.com\nbad\na@example.com\n",
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		res := decodeBody[models.ParseEmailsResult](t, resp)
		require.Equal(t, []string{"a@example.com"}, res.Valid)
		require.Len(t, res.Invalid, 1)
		require.Equal(t, 2, res.Invalid[0].Line)
		require.Equal(t, 1, res.Duplicates)
	})

	t.Run("quote", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/payments/quote?credits=500", alice, nil, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()

		resp = env.do(t, http.MethodGet, "/v1/payments/quote?credits=2000", alice, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		q := decodeBody[models.Quote](t, resp)
		require.Equal(t, int64(600), q.AmountCents)
		require.Equal(t, "usd", q.Currency)
	})

	t.Run("checkout without gateway", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/v1/payments/checkout", alice, map[string]any{"apiKeyId": keyID, "credits": 2000}, nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("admin deletes the batch", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/admin/batches/"+batch.ID, admin, nil, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		resp = env.do(t, http.MethodGet, "/v1/batches/"+batch.ID, alice, nil, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.True(t, strings.Contains(string(body), "Not Found"))
	})
}
