package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/emailcsv"
)

func TestToBatchSummary_DownloadLinkOnlyWhenComplete(t *testing.T) {
	b := &models.Batch{ID: "b1", VendorBatchID: "vb1", Status: models.BatchProcessing, SubmittedAt: time.Now()}
	s := ToBatchSummary(b)
	assert.Equal(t, "vb1", s.BatchID)
	assert.Equal(t, "/v1/batches/b1", s.Links.Self.Href)
	assert.Nil(t, s.Links.Download)

	link := "https://files.test/vb1.csv"
	b.Status = models.BatchComplete
	b.DownloadLink = &link
	s = ToBatchSummary(b)
	require.NotNil(t, s.Links.Download)
	assert.Equal(t, "/v1/batches/b1/download", s.Links.Download.Href)
	assert.Equal(t, &link, s.DownloadLink)
}

func TestToApiKeySummary(t *testing.T) {
	s := ToApiKeySummary(&models.ApiKey{ID: "k1", Vendor: models.VendorDeeep, Key: "secret", MaskedKey: "dp_****cret", Credits: 9})
	assert.Equal(t, "dp_****cret", s.MaskedKey)
	assert.Equal(t, 9, s.Credits)
	assert.Equal(t, "/v1/keys/k1", s.Links.Self.Href)
}

func TestToParseEmailsResult(t *testing.T) {
	out := ToParseEmailsResult(&emailcsv.Result{
		Rows:    2,
		Valid:   []string{"a@b.com"},
		Invalid: []emailcsv.InvalidRow{{Line: 2, Value: "nope"}},
	})
	assert.Equal(t, []models.InvalidEmail{{Line: 2, Value: "nope"}}, out.Invalid)
	assert.Equal(t, 2, out.Rows)
}
