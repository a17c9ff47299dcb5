package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/middleware"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

// KeysController binds the /keys routes to the ApiKeyService
type KeysController struct {
	Service *services.ApiKeyService
}

func NewKeysController(s *services.ApiKeyService) *KeysController {
	return &KeysController{Service: s}
}

// ListKeys handles GET /keys
func (c *KeysController) ListKeys(ctx *gin.Context) ([]models.ApiKeySummary, error) {
	return c.Service.ListKeys(ctx.Request.Context(), middleware.UserID(ctx))
}

// CreateKey handles POST /keys
func (c *KeysController) CreateKey(ctx *gin.Context, body *models.CreateApiKeyInput) (*models.CreatedApiKey, error) {
	return c.Service.CreateKey(ctx.Request.Context(), middleware.UserID(ctx), body)
}

// RetrieveKey handles GET /keys/:id
func (c *KeysController) RetrieveKey(ctx *gin.Context, p *models.ApiKeyParams) (*models.ApiKeySummary, error) {
	return c.Service.GetKey(ctx.Request.Context(), middleware.UserID(ctx), p.ID)
}

// RetrieveCredits handles GET /keys/:id/credits
func (c *KeysController) RetrieveCredits(ctx *gin.Context, p *models.ApiKeyParams) (*models.CreditBalance, error) {
	return c.Service.CreditBalance(ctx.Request.Context(), middleware.UserID(ctx), p.ID)
}
