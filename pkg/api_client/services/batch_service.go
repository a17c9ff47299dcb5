package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/emailcsv"
)

// ResultArchive stores finished results outside the vendor.
type ResultArchive interface {
	Enabled() bool
	ObjectKey(vendor, batchID string) string
	Put(ctx context.Context, key string, data []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type BatchServiceConfig struct {
	PublicURL      string
	PollAttempts   int
	PollInterval   time.Duration
	ReconcileAfter time.Duration
}

// BatchDownload is either a redirect or a file to stream.
type BatchDownload struct {
	RedirectURL string
	FileName    string
	Data        []byte
}

type BatchService struct {
	keys      repositories.ApiKeyRepository
	batches   repositories.BatchRepository
	vendors   vendors.Registry
	archive   ResultArchive
	publicURL string
	settleAge time.Duration
	watcher   *BatchWatcher
}

func NewBatchService(keys repositories.ApiKeyRepository, batches repositories.BatchRepository, registry vendors.Registry, archive ResultArchive, cfg BatchServiceConfig) *BatchService {
	s := &BatchService{
		keys:      keys,
		batches:   batches,
		vendors:   registry,
		archive:   archive,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		settleAge: cfg.ReconcileAfter,
	}
	s.watcher = NewBatchWatcher(cfg.PollAttempts, cfg.PollInterval, s.pollOnce)
	return s
}

func (s *BatchService) archiveEnabled() bool {
	return s.archive != nil && s.archive.Enabled()
}

func downloadPath(id string) string {
	return fmt.Sprintf("/v1/batches/%s/download", id)
}

func (s *BatchService) downloadRoute(id string) string {
	return s.publicURL + downloadPath(id)
}

func (s *BatchService) callbackURL(vendor string) string {
	return fmt.Sprintf("%s/v1/webhooks/%s", s.publicURL, vendor)
}

func (s *BatchService) Submit(ctx context.Context, userID string, in *models.SubmitBatchInput) (*models.BatchSummary, error) {
	cleaned := emailcsv.FromList(in.Emails)
	if len(cleaned.Invalid) > 0 {
		params := make([]problem.InvalidParam, len(cleaned.Invalid))
		for i, row := range cleaned.Invalid {
			params[i] = problem.InvalidParam{Name: fmt.Sprintf("emails[%d]", row.Line-1), Reason: fmt.Sprintf("%q is not a valid email address", row.Value)}
		}
		return nil, problem.NewBadRequest("emails contains invalid addresses", params...)
	}
	return s.submit(ctx, userID, in.ApiKeyID, in.FileName, cleaned.Valid, 0)
}

// SubmitCSV parses an uploaded CSV and submits its valid addresses. Invalid
// rows are counted on the batch but not sent.
func (s *BatchService) SubmitCSV(ctx context.Context, userID, apiKeyID, fileName string, r io.Reader, hasHeader bool) (*models.BatchSummary, error) {
	res, err := emailcsv.Parse(r, emailcsv.Options{HasHeader: hasHeader})
	if err != nil {
		return nil, problem.NewBadRequest(err.Error())
	}
	if len(res.Valid) == 0 {
		return nil, problem.NewBadRequest("upload contains no valid email addresses")
	}
	return s.submit(ctx, userID, apiKeyID, fileName, res.Valid, len(res.Invalid))
}

func (s *BatchService) submit(ctx context.Context, userID, apiKeyID, fileName string, emails []string, invalid int) (*models.BatchSummary, error) {
	if len(emails) == 0 {
		return nil, problem.NewBadRequest("emails must not be empty", problem.InvalidParam{Name: "emails", Reason: "must contain at least one address"})
	}
	key, err := ownedKey(ctx, s.keys, userID, apiKeyID)
	if err != nil {
		return nil, err
	}
	v, err := lookupVendor(s.vendors, key.Vendor)
	if err != nil {
		return nil, err
	}

	credits, err := balance(ctx, s.keys, v, key)
	if err != nil {
		return nil, err
	}
	if credits < len(emails) {
		return nil, problem.NewPaymentRequired(fmt.Sprintf("batch needs %d credits, key has %d", len(emails), credits))
	}

	vendorBatchID, err := v.SubmitBatch(ctx, key.Key, emails, s.callbackURL(v.Name()))
	if err != nil {
		log.Printf("[batch] %s submit failed: %v", v.Name(), err)
		return nil, err
	}

	batch := &models.Batch{
		ID:            uuid.NewString(),
		Vendor:        v.Name(),
		VendorBatchID: vendorBatchID,
		ApiKeyID:      key.ID,
		UserID:        userID,
		FileName:      strings.TrimSpace(fileName),
		ItemCount:     len(emails),
		InvalidCount:  invalid,
		Status:        models.BatchProcessing,
		SubmittedAt:   time.Now(),
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		log.Printf("[batch] %s batch %s submitted but not stored: %v", v.Name(), vendorBatchID, err)
		return nil, err
	}
	if err := s.keys.AdjustCredits(ctx, key.ID, -len(emails)); err != nil {
		log.Printf("[batch] deducting %d credits from %s failed: %v", len(emails), key.ID, err)
	}

	if !v.SupportsCallback() {
		s.watcher.Watch(ctx, batch.ID)
	}

	summary := util.ToBatchSummary(batch)
	return &summary, nil
}

func (s *BatchService) ListBatches(ctx context.Context, userID string, p *models.ListBatchesParams) ([]models.BatchSummary, models.Pagination, error) {
	paging := p.Paging()
	batches, pagination, err := s.batches.ListByUser(ctx, userID, p.Status, paging.Page, paging.PerPage)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	out := make([]models.BatchSummary, len(batches))
	for i := range batches {
		out[i] = util.ToBatchSummary(&batches[i])
	}
	return out, pagination, nil
}

func (s *BatchService) ownedBatch(ctx context.Context, userID, id string) (*models.Batch, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch == nil || batch.UserID != userID {
		return nil, problem.NewNotFound(fmt.Sprintf("batch %s not found", id))
	}
	return batch, nil
}

// Status returns the batch and, while it is processing, asks the vendor once.
func (s *BatchService) Status(ctx context.Context, userID, id string) (*models.BatchSummary, error) {
	batch, err := s.ownedBatch(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !batch.Finished() {
		if updated, err := s.refresh(ctx, batch); err != nil {
			log.Printf("[batch] status poll for %s failed: %v", batch.ID, err)
		} else {
			batch = updated
		}
	}
	summary := util.ToBatchSummary(batch)
	return &summary, nil
}

func (s *BatchService) HandleDeeepWebhook(ctx context.Context, in *models.DeeepWebhook) (*models.WebhookAck, error) {
	status := vendors.NormalizeDeeepStatus(in.Status, in.DownloadLink)
	return s.handleWebhook(ctx, models.VendorDeeep, in.BatchID, status, strings.TrimSpace(in.DownloadLink), in.Error)
}

func (s *BatchService) HandleInstantEmailWebhook(ctx context.Context, in *models.InstantEmailWebhook) (*models.WebhookAck, error) {
	status := vendors.NormalizeInstantEmailStatus(in.Status)
	return s.handleWebhook(ctx, models.VendorInstantEmail, in.RequestID, status, "", in.Message)
}

// handleWebhook applies a vendor callback. Unknown batches are a 404 and
// callbacks for finished batches are acknowledged without a change.
func (s *BatchService) handleWebhook(ctx context.Context, vendor, vendorBatchID, status, link, message string) (*models.WebhookAck, error) {
	batch, err := s.batches.FindByVendorBatchID(ctx, vendor, vendorBatchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, problem.NewNotFound(fmt.Sprintf("batch %s not found", vendorBatchID))
	}
	if !batch.Finished() {
		v, err := lookupVendor(s.vendors, vendor)
		if err != nil {
			return nil, err
		}
		updated, err := s.apply(ctx, v, batch, status, link, message)
		if err != nil {
			return nil, err
		}
		batch = updated
	}
	log.Printf("[webhook] %s batch %s is %s", vendor, vendorBatchID, batch.Status)
	return &models.WebhookAck{Received: true, BatchID: batch.ID, Status: batch.Status}, nil
}

func (s *BatchService) apiKeyFor(ctx context.Context, batch *models.Batch) (*models.ApiKey, error) {
	key, err := s.keys.GetByID(ctx, batch.ApiKeyID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("api key %s of batch %s no longer exists", batch.ApiKeyID, batch.ID)
	}
	return key, nil
}

// refresh polls the vendor for a processing batch and applies the answer.
func (s *BatchService) refresh(ctx context.Context, batch *models.Batch) (*models.Batch, error) {
	v, err := s.vendors.Get(batch.Vendor)
	if err != nil {
		return nil, err
	}
	key, err := s.apiKeyFor(ctx, batch)
	if err != nil {
		return nil, err
	}
	st, err := v.BatchStatus(ctx, key.Key, batch.VendorBatchID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, v, batch, st.Status, st.DownloadLink, st.Message)
}

func (s *BatchService) apply(ctx context.Context, v vendors.Validator, batch *models.Batch, status, link, message string) (*models.Batch, error) {
	var err error
	switch status {
	case models.BatchComplete:
		err = s.complete(ctx, v, batch, link)
	case models.BatchFailed:
		if message == "" {
			message = "vendor reported failure"
		}
		err = s.batches.MarkFailed(ctx, batch.ID, message)
	default:
		return batch, nil
	}
	if err != nil && !errors.Is(err, repositories.ErrNotProcessing) {
		return nil, err
	}
	return s.reload(ctx, batch)
}

// complete finishes a batch. With an archive configured the result is copied
// there first; without a vendor link the portal download route is stored.
func (s *BatchService) complete(ctx context.Context, v vendors.Validator, batch *models.Batch, link string) error {
	var archiveKey *string
	if s.archiveEnabled() {
		if key, err := s.archiveResult(ctx, v, batch); err != nil {
			log.Printf("[batch] archiving %s failed: %v", batch.ID, err)
		} else {
			archiveKey = &key
		}
	}
	if link == "" {
		link = s.downloadRoute(batch.ID)
	}
	return s.batches.MarkComplete(ctx, batch.ID, link, archiveKey)
}

func (s *BatchService) archiveResult(ctx context.Context, v vendors.Validator, batch *models.Batch) (string, error) {
	key, err := s.apiKeyFor(ctx, batch)
	if err != nil {
		return "", err
	}
	data, err := v.DownloadResult(ctx, key.Key, batch.VendorBatchID)
	if err != nil {
		return "", err
	}
	objectKey := s.archive.ObjectKey(v.Name(), batch.VendorBatchID)
	if err := s.archive.Put(ctx, objectKey, data); err != nil {
		return "", err
	}
	return objectKey, nil
}

func (s *BatchService) reload(ctx context.Context, batch *models.Batch) (*models.Batch, error) {
	updated, err := s.batches.GetByID(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, problem.NewNotFound(fmt.Sprintf("batch %s not found", batch.ID))
	}
	return updated, nil
}

func (s *BatchService) pollOnce(ctx context.Context, id string) (bool, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if batch == nil {
		log.Printf("[batch-watch] %s was deleted, stop watching", id)
		return true, nil
	}
	if batch.Finished() {
		return true, nil
	}
	updated, err := s.refresh(ctx, batch)
	if err != nil {
		return false, err
	}
	return updated.Finished(), nil
}

// Download resolves where the result of a complete batch can be fetched.
func (s *BatchService) Download(ctx context.Context, userID, id string) (*BatchDownload, error) {
	batch, err := s.ownedBatch(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchComplete || batch.DownloadLink == nil {
		return nil, problem.NewConflict(fmt.Sprintf("batch %s is %s", batch.ID, batch.Status))
	}

	if batch.ArchiveKey != nil && s.archiveEnabled() {
		url, err := s.archive.PresignGet(ctx, *batch.ArchiveKey)
		if err == nil {
			return &BatchDownload{RedirectURL: url}, nil
		}
		log.Printf("[batch] presigning %s failed, falling back to vendor: %v", batch.ID, err)
	}

	if link := *batch.DownloadLink; !strings.HasSuffix(link, downloadPath(batch.ID)) {
		return &BatchDownload{RedirectURL: link}, nil
	}

	v, err := lookupVendor(s.vendors, batch.Vendor)
	if err != nil {
		return nil, err
	}
	key, err := s.apiKeyFor(ctx, batch)
	if err != nil {
		return nil, err
	}
	data, err := v.DownloadResult(ctx, key.Key, batch.VendorBatchID)
	if err != nil {
		return nil, err
	}
	return &BatchDownload{
		FileName: fmt.Sprintf("%s-%s.csv", batch.Vendor, batch.VendorBatchID),
		Data:     data,
	}, nil
}

// Reconcile polls every batch that has been processing for longer than the
// configured age and returns how many of them finished.
func (s *BatchService) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.batches.ListProcessing(ctx, time.Now().Add(-s.settleAge))
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	finished := make([]bool, len(pending))
	sem := semaphore.NewWeighted(2)
	g, gctx := errgroup.WithContext(ctx)
	for i := range pending {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			defer sem.Release(1)
			updated, err := s.refresh(gctx, &pending[i])
			if err != nil {
				log.Printf("[reconcile] batch %s: %v", pending[i].ID, err)
				return nil
			}
			finished[i] = updated.Finished()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, done := range finished {
		if done {
			count++
		}
	}
	log.Printf("[reconcile] %d of %d processing batches finished", count, len(pending))
	return count, ctx.Err()
}

func (s *BatchService) AdminDelete(ctx context.Context, id string) error {
	if err := s.batches.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return problem.NewNotFound(fmt.Sprintf("batch %s not found", id))
		}
		return err
	}
	log.Printf("[admin] batch %s deleted", id)
	return nil
}
