package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/payments"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/config"
)

// CheckoutGateway is a hosted checkout such as Stripe Checkout.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*payments.CheckoutEvent, error)
}

// CardCharger runs direct card sales with a tokenized card.
type CardCharger interface {
	Name() string
	Enabled() bool
	Sale(ctx context.Context, req payments.SaleRequest) (*payments.SaleResult, error)
}

type PaymentService struct {
	payments repositories.PaymentRepository
	keys     repositories.ApiKeyRepository
	vendors  vendors.Registry
	checkout CheckoutGateway
	cards    map[string]CardCharger
	pricing  config.PricingConfig
}

func NewPaymentService(paymentRepo repositories.PaymentRepository, keys repositories.ApiKeyRepository, registry vendors.Registry, checkout CheckoutGateway, pricing config.PricingConfig, cards ...CardCharger) *PaymentService {
	s := &PaymentService{
		payments: paymentRepo,
		keys:     keys,
		vendors:  registry,
		checkout: checkout,
		cards:    map[string]CardCharger{},
		pricing:  pricing,
	}
	for _, c := range cards {
		if c != nil && c.Enabled() {
			s.cards[c.Name()] = c
		}
	}
	return s
}

// Quote prices a credits purchase, rounding up to the next cent.
func (s *PaymentService) Quote(credits int) (*models.Quote, error) {
	if credits < s.pricing.MinCredits {
		return nil, problem.NewBadRequest(
			fmt.Sprintf("minimum purchase is %d credits", s.pricing.MinCredits),
			problem.InvalidParam{Name: "credits", Reason: fmt.Sprintf("must be at least %d", s.pricing.MinCredits)},
		)
	}
	if credits > models.MaxPurchaseCredits || (s.pricing.CentsPerThousand > 0 && int64(credits) > (math.MaxInt64-999)/s.pricing.CentsPerThousand) {
		return nil, problem.NewBadRequest(
			fmt.Sprintf("maximum purchase is %d credits", models.MaxPurchaseCredits),
			problem.InvalidParam{Name: "credits", Reason: fmt.Sprintf("must be at most %d", models.MaxPurchaseCredits)},
		)
	}
	amount := (int64(credits)*s.pricing.CentsPerThousand + 999) / 1000
	return &models.Quote{
		Credits:     credits,
		AmountCents: amount,
		Currency:    strings.ToLower(s.pricing.Currency),
	}, nil
}

func (s *PaymentService) newPayment(userID, apiKeyID, gateway string, q *models.Quote) (*models.Payment, error) {
	ref, err := shortid.Generate()
	if err != nil {
		return nil, err
	}
	return &models.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		ApiKeyID:    apiKeyID,
		Gateway:     gateway,
		OrderRef:    ref,
		Credits:     q.Credits,
		AmountCents: q.AmountCents,
		Currency:    q.Currency,
		Status:      models.PaymentPending,
	}, nil
}

// Checkout opens a hosted checkout; credits are applied when the gateway
// reports the session as paid.
func (s *PaymentService) Checkout(ctx context.Context, userID, email string, in *models.CheckoutInput) (*models.CheckoutResponse, error) {
	if s.checkout == nil {
		return nil, problem.NewServiceUnavailable("checkout is not configured")
	}
	key, err := ownedKey(ctx, s.keys, userID, in.ApiKeyID)
	if err != nil {
		return nil, err
	}
	quote, err := s.Quote(in.Credits)
	if err != nil {
		return nil, err
	}
	payment, err := s.newPayment(userID, key.ID, models.GatewayStripe, quote)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}

	sess, err := s.checkout.CreateCheckout(ctx, payments.CheckoutRequest{
		PaymentID:   payment.ID,
		ApiKeyID:    key.ID,
		OrderRef:    payment.OrderRef,
		Credits:     payment.Credits,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Email:       email,
	})
	if err != nil {
		if mErr := s.payments.MarkFailed(ctx, payment.ID, err.Error()); mErr != nil {
			log.Printf("[payment] marking %s failed: %v", payment.ID, mErr)
		}
		return nil, err
	}
	if err := s.payments.SetExternalID(ctx, payment.ID, sess.ID); err != nil {
		log.Printf("[payment] storing session %s for %s failed: %v", sess.ID, payment.ID, err)
	}

	return &models.CheckoutResponse{
		PaymentID:   payment.ID,
		CheckoutURL: sess.URL,
		Quote:       *quote,
	}, nil
}

// Charge runs a direct card sale and applies the credits right away.
func (s *PaymentService) Charge(ctx context.Context, userID string, in *models.ChargeInput) (*models.Payment, error) {
	card, ok := s.cards[in.Gateway]
	if !ok {
		return nil, problem.NewBadRequest(fmt.Sprintf("gateway %s is not configured", in.Gateway))
	}
	key, err := ownedKey(ctx, s.keys, userID, in.ApiKeyID)
	if err != nil {
		return nil, err
	}
	quote, err := s.Quote(in.Credits)
	if err != nil {
		return nil, err
	}
	payment, err := s.newPayment(userID, key.ID, card.Name(), quote)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}

	sale, err := card.Sale(ctx, payments.SaleRequest{
		OrderRef:     payment.OrderRef,
		AmountCents:  payment.AmountCents,
		Currency:     payment.Currency,
		PaymentToken: in.PaymentToken,
	})
	if err != nil {
		if mErr := s.payments.MarkFailed(ctx, payment.ID, err.Error()); mErr != nil {
			log.Printf("[payment] marking %s failed: %v", payment.ID, mErr)
		}
		if errors.Is(err, payments.ErrDeclined) {
			return nil, problem.NewPaymentRequired(err.Error())
		}
		return nil, err
	}

	if err := s.applyCredits(ctx, payment, sale.TransactionID); err != nil {
		log.Printf("[payment] %s charged (%s) but credits not applied: %v", payment.ID, sale.TransactionID, err)
		return nil, err
	}
	return s.reload(ctx, payment.ID)
}

// HandleStripeEvent processes a verified checkout webhook.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) (*models.WebhookAck, error) {
	if s.checkout == nil {
		return nil, problem.NewServiceUnavailable("checkout is not configured")
	}
	ev, err := s.checkout.ParseEvent(payload, signature)
	if err != nil {
		return nil, problem.NewBadRequest(err.Error())
	}
	if ev.Type == payments.EventIgnored {
		return &models.WebhookAck{Received: true}, nil
	}

	payment, err := s.findCheckoutPayment(ctx, ev)
	if err != nil {
		return nil, err
	}

	switch {
	case ev.Type == payments.EventCheckoutExpired:
		if err := s.payments.MarkFailed(ctx, payment.ID, "checkout expired"); err != nil && !errors.Is(err, repositories.ErrNotPending) {
			return nil, err
		}
	case ev.Paid:
		if err := s.applyCredits(ctx, payment, ev.SessionID); err != nil {
			return nil, err
		}
	}

	updated, err := s.reload(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("[payment] stripe session %s: payment %s is %s", ev.SessionID, updated.ID, updated.Status)
	return &models.WebhookAck{Received: true, Status: updated.Status}, nil
}

func (s *PaymentService) findCheckoutPayment(ctx context.Context, ev *payments.CheckoutEvent) (*models.Payment, error) {
	var (
		payment *models.Payment
		err     error
	)
	if ev.PaymentID != "" {
		payment, err = s.payments.GetByID(ctx, ev.PaymentID)
	} else {
		payment, err = s.payments.FindByExternalID(ctx, models.GatewayStripe, ev.SessionID)
	}
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, problem.NewNotFound(fmt.Sprintf("payment for session %s not found", ev.SessionID))
	}
	return payment, nil
}

// applyCredits tops up the vendor first. When that fails the payment stays
// pending so a gateway retry can try again. A payment that is no longer
// pending is never credited.
func (s *PaymentService) applyCredits(ctx context.Context, payment *models.Payment, externalID string) error {
	if payment.Status != models.PaymentPending {
		return nil
	}
	key, err := s.keys.GetByID(ctx, payment.ApiKeyID)
	if err != nil {
		return err
	}
	if key == nil {
		return problem.NewNotFound(fmt.Sprintf("api key %s not found", payment.ApiKeyID))
	}
	v, err := lookupVendor(s.vendors, key.Vendor)
	if err != nil {
		return err
	}
	if err := v.AddCredits(ctx, key.Key, payment.Credits); err != nil {
		return err
	}

	if err := s.payments.MarkPaid(ctx, payment.ID, externalID); err != nil {
		if errors.Is(err, repositories.ErrNotPending) {
			log.Printf("[payment] %s was already settled", payment.ID)
			return nil
		}
		return err
	}
	if err := s.keys.AdjustCredits(ctx, key.ID, payment.Credits); err != nil {
		log.Printf("[payment] adding %d credits to %s failed: %v", payment.Credits, key.ID, err)
	}
	log.Printf("[payment] %s paid: %d credits for %s", payment.ID, payment.Credits, key.ID)
	return nil
}

func (s *PaymentService) reload(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, problem.NewNotFound(fmt.Sprintf("payment %s not found", id))
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, userID string, p *models.PageParams) ([]models.Payment, models.Pagination, error) {
	p.Normalize()
	return s.payments.ListByUser(ctx, userID, p.Page, p.PerPage)
}
