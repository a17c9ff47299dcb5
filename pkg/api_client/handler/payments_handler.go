package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/util"
	"github.com/bulkverify/credits-portal/pkg/api_client/middleware"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
)

// PaymentsController binds the /payments routes to the PaymentService
type PaymentsController struct {
	Service *services.PaymentService
}

func NewPaymentsController(s *services.PaymentService) *PaymentsController {
	return &PaymentsController{Service: s}
}

// ListPayments handles GET /payments
func (c *PaymentsController) ListPayments(ctx *gin.Context, p *models.PageParams) ([]models.Payment, error) {
	list, pagination, err := c.Service.ListPayments(ctx.Request.Context(), middleware.UserID(ctx), p)
	if err != nil {
		return nil, err
	}
	util.SetPaginationHeaders(ctx.Request, ctx.Header, pagination)
	return list, nil
}

// GetQuote handles GET /payments/quote
func (c *PaymentsController) GetQuote(ctx *gin.Context, p *models.QuoteParams) (*models.Quote, error) {
	return c.Service.Quote(p.Credits)
}

// Checkout handles POST /payments/checkout
func (c *PaymentsController) Checkout(ctx *gin.Context, body *models.CheckoutInput) (*models.CheckoutResponse, error) {
	return c.Service.Checkout(ctx.Request.Context(), middleware.UserID(ctx), middleware.Email(ctx), body)
}

// Charge handles POST /payments/charge
func (c *PaymentsController) Charge(ctx *gin.Context, body *models.ChargeInput) (*models.Payment, error) {
	return c.Service.Charge(ctx.Request.Context(), middleware.UserID(ctx), body)
}
