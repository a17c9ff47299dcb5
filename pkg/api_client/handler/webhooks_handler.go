package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

const maxWebhookBytes = 1 << 16

// WebhooksController receives vendor and gateway callbacks
type WebhooksController struct {
	Batches  *services.BatchService
	Payments *services.PaymentService
}

func NewWebhooksController(batches *services.BatchService, payments *services.PaymentService) *WebhooksController {
	return &WebhooksController{Batches: batches, Payments: payments}
}

// DeeepWebhook handles POST /webhooks/deeep
func (c *WebhooksController) DeeepWebhook(ctx *gin.Context, body *models.DeeepWebhook) (*models.WebhookAck, error) {
	return c.Batches.HandleDeeepWebhook(ctx.Request.Context(), body)
}

// InstantEmailWebhook handles POST /webhooks/instantemail
func (c *WebhooksController) InstantEmailWebhook(ctx *gin.Context, body *models.InstantEmailWebhook) (*models.WebhookAck, error) {
	return c.Batches.HandleInstantEmailWebhook(ctx.Request.Context(), body)
}

// StripeWebhook handles POST /webhooks/stripe. The raw body is needed to
// verify the signature, so this is a plain gin handler.
func (c *WebhooksController) StripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBytes))
	if err != nil {
		RenderError(ctx, problem.NewBadRequest("could not read body"))
		return
	}
	ack, err := c.Payments.HandleStripeEvent(ctx.Request.Context(), payload, ctx.GetHeader("Stripe-Signature"))
	if err != nil {
		RenderError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ack)
}
