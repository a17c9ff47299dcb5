package util

import (
	"fmt"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/emailcsv"
)

func ToApiKeySummary(key *models.ApiKey) models.ApiKeySummary {
	return models.ApiKeySummary{
		ID:           key.ID,
		Vendor:       key.Vendor,
		Label:        key.Label,
		MaskedKey:    key.MaskedKey,
		CustomerLink: key.CustomerLink,
		Credits:      key.Credits,
		CreatedAt:    key.CreatedAt,
		Links: &models.Links{
			Self: &models.Link{Href: fmt.Sprintf("/v1/keys/%s", key.ID)},
		},
	}
}

func ToBatchSummary(batch *models.Batch) models.BatchSummary {
	links := &models.Links{
		Self: &models.Link{Href: fmt.Sprintf("/v1/batches/%s", batch.ID)},
	}
	if batch.Status == models.BatchComplete {
		links.Download = &models.Link{Href: fmt.Sprintf("/v1/batches/%s/download", batch.ID)}
	}
	return models.BatchSummary{
		ID:           batch.ID,
		BatchID:      batch.VendorBatchID,
		Vendor:       batch.Vendor,
		ApiKeyID:     batch.ApiKeyID,
		FileName:     batch.FileName,
		ItemCount:    batch.ItemCount,
		InvalidCount: batch.InvalidCount,
		Status:       batch.Status,
		DownloadLink: batch.DownloadLink,
		SubmittedAt:  batch.SubmittedAt,
		CompletedAt:  batch.CompletedAt,
		Links:        links,
	}
}

func ToParseEmailsResult(res *emailcsv.Result) models.ParseEmailsResult {
	invalid := make([]models.InvalidEmail, len(res.Invalid))
	for i, row := range res.Invalid {
		invalid[i] = models.InvalidEmail{Line: row.Line, Value: row.Value}
	}
	return models.ParseEmailsResult{
		Rows:       res.Rows,
		Valid:      res.Valid,
		Invalid:    invalid,
		Duplicates: res.Duplicates,
	}
}
