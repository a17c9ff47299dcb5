package vendors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/httpclient"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
)

// DeeepClient talks to the DEEEP validation API. DEEEP calls the portal back
// with a download link once a batch is done; its balance is cached locally.
type DeeepClient struct {
	BaseURL    string
	PartnerKey string
}

func NewDeeepClient(baseURL, partnerKey string) *DeeepClient {
	return &DeeepClient{BaseURL: baseURL, PartnerKey: partnerKey}
}

func (c *DeeepClient) Name() string           { return models.VendorDeeep }
func (c *DeeepClient) LiveCredits() bool      { return false }
func (c *DeeepClient) SupportsCallback() bool { return true }

func (c *DeeepClient) bearer(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

func (c *DeeepClient) partner() map[string]string {
	return map[string]string{"X-Partner-Key": c.PartnerKey}
}

func (c *DeeepClient) CreateKey(ctx context.Context, label string) (*CreatedKey, error) {
	var out struct {
		ApiKey       string `json:"api_key"`
		CustomerLink string `json:"customer_link"`
	}
	payload := map[string]string{"label": label}
	if err := doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/v1/partner/keys", c.partner(), payload, &out); err != nil {
		return nil, err
	}
	if out.ApiKey == "" {
		return nil, errors.New("deeep returned an empty api key")
	}
	return &CreatedKey{Key: out.ApiKey, CustomerLink: out.CustomerLink}, nil
}

func (c *DeeepClient) Credits(ctx context.Context, apiKey string) (int, error) {
	var out struct {
		Credits int `json:"credits"`
	}
	if err := doJSON(ctx, c.Name(), http.MethodGet, c.BaseURL, "/v1/credits", c.bearer(apiKey), nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

func (c *DeeepClient) AddCredits(ctx context.Context, apiKey string, amount int) error {
	payload := map[string]any{"api_key": apiKey, "amount": amount}
	return doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/v1/partner/credits", c.partner(), payload, nil)
}

func (c *DeeepClient) SubmitBatch(ctx context.Context, apiKey string, emails []string, callbackURL string) (string, error) {
	var out struct {
		BatchID string `json:"batch_id"`
	}
	payload := map[string]any{"emails": emails, "callback_url": callbackURL}
	if err := doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/v1/batch/validate", c.bearer(apiKey), payload, &out); err != nil {
		return "", err
	}
	if out.BatchID == "" {
		return "", errors.New("deeep returned an empty batch id")
	}
	return out.BatchID, nil
}

func (c *DeeepClient) BatchStatus(ctx context.Context, apiKey, batchID string) (*BatchStatus, error) {
	var out struct {
		BatchID      string `json:"batch_id"`
		Status       string `json:"status"`
		DownloadLink string `json:"download_link"`
		Error        string `json:"error"`
	}
	endpoint := "/v1/batch/" + url.PathEscape(batchID)
	if err := doJSON(ctx, c.Name(), http.MethodGet, c.BaseURL, endpoint, c.bearer(apiKey), nil, &out); err != nil {
		return nil, err
	}
	return &BatchStatus{
		BatchID:      batchID,
		Status:       NormalizeDeeepStatus(out.Status, out.DownloadLink),
		DownloadLink: out.DownloadLink,
		Message:      out.Error,
	}, nil
}

// DownloadResult fetches the file behind the batch download link.
func (c *DeeepClient) DownloadResult(ctx context.Context, apiKey, batchID string) ([]byte, error) {
	st, err := c.BatchStatus(ctx, apiKey, batchID)
	if err != nil {
		return nil, err
	}
	if st.Status != models.BatchComplete {
		return nil, fmt.Errorf("deeep batch %s is %s", batchID, st.Status)
	}
	return httpclient.GetBytes(ctx, st.DownloadLink)
}

// NormalizeDeeepStatus maps DEEEP statuses. A link without an explicit
// status counts as complete.
func NormalizeDeeepStatus(status, link string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "complete", "done", "finished":
		if link == "" {
			return models.BatchProcessing
		}
		return models.BatchComplete
	case "failed", "error", "cancelled", "canceled":
		return models.BatchFailed
	case "":
		if link != "" {
			return models.BatchComplete
		}
		return models.BatchProcessing
	default:
		return models.BatchProcessing
	}
}
