package vendors

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
)

// InstantEmailClient talks to the InstantEmail bulk API. Its credits are
// always read live and results come back as a base64 encoded CSV.
type InstantEmailClient struct {
	BaseURL    string
	PartnerKey string
}

func NewInstantEmailClient(baseURL, partnerKey string) *InstantEmailClient {
	return &InstantEmailClient{BaseURL: baseURL, PartnerKey: partnerKey}
}

func (c *InstantEmailClient) Name() string           { return models.VendorInstantEmail }
func (c *InstantEmailClient) LiveCredits() bool      { return true }
func (c *InstantEmailClient) SupportsCallback() bool { return false }

func (c *InstantEmailClient) keyHeader(apiKey string) map[string]string {
	return map[string]string{"X-Api-Key": apiKey}
}

func (c *InstantEmailClient) partner() map[string]string {
	return map[string]string{"X-Partner-Key": c.PartnerKey}
}

func (c *InstantEmailClient) CreateKey(ctx context.Context, label string) (*CreatedKey, error) {
	var out struct {
		Key string `json:"key"`
	}
	if err := doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/api/v1/keys", c.partner(), map[string]string{"name": label}, &out); err != nil {
		return nil, err
	}
	if out.Key == "" {
		return nil, errors.New("instantemail returned an empty key")
	}
	return &CreatedKey{Key: out.Key}, nil
}

func (c *InstantEmailClient) Credits(ctx context.Context, apiKey string) (int, error) {
	var out struct {
		Remaining int `json:"remaining"`
	}
	if err := doJSON(ctx, c.Name(), http.MethodGet, c.BaseURL, "/api/v1/credits", c.keyHeader(apiKey), nil, &out); err != nil {
		return 0, err
	}
	return out.Remaining, nil
}

func (c *InstantEmailClient) AddCredits(ctx context.Context, apiKey string, amount int) error {
	payload := map[string]any{"key": apiKey, "credits": amount}
	return doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/api/v1/credits/topup", c.partner(), payload, nil)
}

func (c *InstantEmailClient) SubmitBatch(ctx context.Context, apiKey string, emails []string, callbackURL string) (string, error) {
	var out struct {
		RequestID string `json:"request_id"`
	}
	payload := map[string]any{"emails": emails}
	if callbackURL != "" {
		payload["webhook_url"] = callbackURL
	}
	if err := doJSON(ctx, c.Name(), http.MethodPost, c.BaseURL, "/api/v1/bulk", c.keyHeader(apiKey), payload, &out); err != nil {
		return "", err
	}
	if out.RequestID == "" {
		return "", errors.New("instantemail returned an empty request id")
	}
	return out.RequestID, nil
}

func (c *InstantEmailClient) BatchStatus(ctx context.Context, apiKey, batchID string) (*BatchStatus, error) {
	var out struct {
		RequestID string `json:"request_id"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	endpoint := "/api/v1/bulk/" + url.PathEscape(batchID)
	if err := doJSON(ctx, c.Name(), http.MethodGet, c.BaseURL, endpoint, c.keyHeader(apiKey), nil, &out); err != nil {
		return nil, err
	}
	return &BatchStatus{
		BatchID: batchID,
		Status:  NormalizeInstantEmailStatus(out.Status),
		Message: out.Message,
	}, nil
}

// DownloadResult requests the result payload and decodes the base64 CSV.
func (c *InstantEmailClient) DownloadResult(ctx context.Context, apiKey, batchID string) ([]byte, error) {
	var out struct {
		File string `json:"file"`
	}
	endpoint := "/api/v1/bulk/" + url.PathEscape(batchID) + "/download"
	if err := doJSON(ctx, c.Name(), http.MethodGet, c.BaseURL, endpoint, c.keyHeader(apiKey), nil, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.File) == "" {
		return nil, errors.New("instantemail returned an empty result file")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out.File))
	if err != nil {
		return nil, fmt.Errorf("decode instantemail result: %w", err)
	}
	return data, nil
}

func NormalizeInstantEmailStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "done", "completed", "complete", "success":
		return models.BatchComplete
	case "error", "failed", "expired":
		return models.BatchFailed
	default:
		return models.BatchProcessing
	}
}
