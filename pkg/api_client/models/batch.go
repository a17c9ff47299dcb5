package models

import "time"

const (
	BatchProcessing = "processing"
	BatchComplete   = "complete"
	BatchFailed     = "failed"
)

// Batch is the local mirror of a vendor validation batch. Status only moves
// forward: processing -> complete | failed. DownloadLink is set exactly when
// the batch is complete.
type Batch struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	Vendor        string     `gorm:"column:vendor;not null;uniqueIndex:ux_batches_vendor_batch,priority:1" json:"vendor"`
	VendorBatchID string     `gorm:"column:vendor_batch_id;not null;uniqueIndex:ux_batches_vendor_batch,priority:2" json:"batchId"`
	ApiKeyID      string     `gorm:"column:api_key_id;index;not null" json:"apiKeyId"`
	UserID        string     `gorm:"column:user_id;index;not null" json:"userId"`
	FileName      string     `gorm:"column:file_name" json:"fileName,omitempty"`
	ItemCount     int        `gorm:"column:item_count;not null" json:"itemCount"`
	InvalidCount  int        `gorm:"column:invalid_count;not null;default:0" json:"invalidCount"`
	Status        string     `gorm:"column:status;index;not null" json:"status"`
	DownloadLink  *string    `gorm:"column:download_link" json:"downloadLink"`
	ArchiveKey    *string    `gorm:"column:archive_key" json:"-"`
	FailureReason string     `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	SubmittedAt   time.Time  `gorm:"column:submitted_at;index" json:"submittedAt"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (b *Batch) Finished() bool {
	return b.Status == BatchComplete || b.Status == BatchFailed
}

type BatchParams struct {
	ID string `path:"id" binding:"required"`
}

type ListBatchesParams struct {
	Page    int     `query:"page"`
	PerPage int     `query:"perPage"`
	Status  *string `query:"status"`
}

// Paging returns the normalized page window.
func (p ListBatchesParams) Paging() PageParams {
	pp := PageParams{Page: p.Page, PerPage: p.PerPage}
	pp.Normalize()
	return pp
}

type SubmitBatchInput struct {
	ApiKeyID string   `json:"apiKeyId" binding:"required"`
	Emails   []string `json:"emails"`
	FileName string   `json:"fileName"`
}

type BatchSummary struct {
	ID           string     `json:"id"`
	BatchID      string     `json:"batchId"`
	Vendor       string     `json:"vendor"`
	ApiKeyID     string     `json:"apiKeyId"`
	FileName     string     `json:"fileName,omitempty"`
	ItemCount    int        `json:"itemCount"`
	InvalidCount int        `json:"invalidCount"`
	Status       string     `json:"status"`
	DownloadLink *string    `json:"downloadLink"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Links        *Links     `json:"_links,omitempty"`
}

// DeeepWebhook is the completion callback sent by DEEEP.
type DeeepWebhook struct {
	BatchID      string `json:"batch_id" binding:"required"`
	DownloadLink string `json:"download_link"`
	Status       string `json:"status"`
	Error        string `json:"error"`
}

// InstantEmailWebhook is the completion callback sent by InstantEmail.
type InstantEmailWebhook struct {
	RequestID string `json:"request_id" binding:"required"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type WebhookAck struct {
	Received bool   `json:"received"`
	BatchID  string `json:"batchId,omitempty"`
	Status   string `json:"status,omitempty"`
}
