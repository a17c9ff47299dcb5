package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/middleware"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

const maxUploadBytes = 32 << 20

// BatchesController binds the /batches routes to the BatchService
type BatchesController struct {
	Service *services.BatchService
}

func NewBatchesController(s *services.BatchService) *BatchesController {
	return &BatchesController{Service: s}
}

// ListBatches handles GET /batches
func (c *BatchesController) ListBatches(ctx *gin.Context, p *models.ListBatchesParams) ([]models.BatchSummary, error) {
	batches, pagination, err := c.Service.ListBatches(ctx.Request.Context(), middleware.UserID(ctx), p)
	if err != nil {
		return nil, err
	}
	util.SetPaginationHeaders(ctx.Request, ctx.Header, pagination)
	return batches, nil
}

// SubmitBatch handles POST /batches
func (c *BatchesController) SubmitBatch(ctx *gin.Context, body *models.SubmitBatchInput) (*models.BatchSummary, error) {
	return c.Service.Submit(ctx.Request.Context(), middleware.UserID(ctx), body)
}

// RetrieveBatch handles GET /batches/:id
func (c *BatchesController) RetrieveBatch(ctx *gin.Context, p *models.BatchParams) (*models.BatchSummary, error) {
	return c.Service.Status(ctx.Request.Context(), middleware.UserID(ctx), p.ID)
}

// UploadBatch handles POST /batches/upload (multipart: file, apiKeyId, hasHeader)
func (c *BatchesController) UploadBatch(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBytes)

	apiKeyID := ctx.PostForm("apiKeyId")
	if apiKeyID == "" {
		RenderError(ctx, problem.NewBadRequest("apiKeyId is required", problem.InvalidParam{Name: "apiKeyId", Reason: "is required"}))
		return
	}
	hasHeader := false
	if raw := ctx.PostForm("hasHeader"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RenderError(ctx, problem.NewBadRequest("hasHeader must be a boolean", problem.InvalidParam{Name: "hasHeader", Reason: "must be true or false"}))
			return
		}
		hasHeader = v
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		RenderError(ctx, problem.NewBadRequest("file is required", problem.InvalidParam{Name: "file", Reason: err.Error()}))
		return
	}
	file, err := header.Open()
	if err != nil {
		RenderError(ctx, err)
		return
	}
	defer file.Close()

	summary, err := c.Service.SubmitCSV(ctx.Request.Context(), middleware.UserID(ctx), apiKeyID, filepath.Base(header.Filename), file, hasHeader)
	if err != nil {
		RenderError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, summary)
}

// DownloadBatch handles GET /batches/:id/download
func (c *BatchesController) DownloadBatch(ctx *gin.Context) {
	dl, err := c.Service.Download(ctx.Request.Context(), middleware.UserID(ctx), ctx.Param("id"))
	if err != nil {
		RenderError(ctx, err)
		return
	}
	if dl.RedirectURL != "" {
		ctx.Redirect(http.StatusFound, dl.RedirectURL)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", dl.Data)
}
