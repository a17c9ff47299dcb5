package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

// AdminController serves the operator routes under /admin
type AdminController struct {
	Keys    *services.ApiKeyService
	Batches *services.BatchService
}

func NewAdminController(keys *services.ApiKeyService, batches *services.BatchService) *AdminController {
	return &AdminController{Keys: keys, Batches: batches}
}

// ListKeys handles GET /admin/keys
func (c *AdminController) ListKeys(ctx *gin.Context, p *models.PageParams) ([]models.ApiKeySummary, error) {
	keys, pagination, err := c.Keys.AdminList(ctx.Request.Context(), p)
	if err != nil {
		return nil, err
	}
	util.SetPaginationHeaders(ctx.Request, ctx.Header, pagination)
	return keys, nil
}

// DeleteKey handles DELETE /admin/keys/:id
func (c *AdminController) DeleteKey(ctx *gin.Context, p *models.ApiKeyParams) error {
	return c.Keys.AdminDelete(ctx.Request.Context(), p.ID)
}

// AdjustCredits handles POST /admin/keys/:id/credits
func (c *AdminController) AdjustCredits(ctx *gin.Context, body *models.AdjustCreditsInput) (*models.ApiKeySummary, error) {
	return c.Keys.AdminAdjustCredits(ctx.Request.Context(), body)
}

// DeleteBatch handles DELETE /admin/batches/:id
func (c *AdminController) DeleteBatch(ctx *gin.Context, p *models.BatchParams) error {
	return c.Batches.AdminDelete(ctx.Request.Context(), p.ID)
}
