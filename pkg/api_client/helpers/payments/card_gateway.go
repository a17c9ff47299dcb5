package payments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/httpclient"
	"github.com/bulkverify/credits-portal/pkg/config"
)

// CardGateway charges tokenized cards through an NMI-compatible direct post
// API. NMI and Merchantic only differ in endpoint and security key.
type CardGateway struct {
	name        string
	endpoint    string
	securityKey string
}

func NewCardGateway(name string, cfg config.CardGatewayConfig) *CardGateway {
	return &CardGateway{
		name:        name,
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		securityKey: cfg.SecurityKey,
	}
}

func (g *CardGateway) Name() string {
	return g.name
}

func (g *CardGateway) Enabled() bool {
	return g.endpoint != "" && g.securityKey != ""
}

// Sale runs a single type=sale transaction. A declined or rejected sale is
// reported as ErrDeclined with the gateway's response text.
func (g *CardGateway) Sale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	if !g.Enabled() {
		return nil, fmt.Errorf("%s: %w", g.name, ErrDisabled)
	}

	form := url.Values{}
	form.Set("security_key", g.securityKey)
	form.Set("type", "sale")
	form.Set("payment_token", req.PaymentToken)
	form.Set("amount", formatAmount(req.AmountCents))
	form.Set("orderid", req.OrderRef)
	if req.Currency != "" {
		form.Set("currency", strings.ToUpper(req.Currency))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/x-www-form-urlencoded")

	resp, err := httpclient.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", g.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid response: %w", g.name, err)
	}
	result := &SaleResult{
		TransactionID: values.Get("transactionid"),
		AuthCode:      values.Get("authcode"),
		Message:       values.Get("responsetext"),
	}
	switch values.Get("response") {
	case "1":
		return result, nil
	case "2":
		return nil, fmt.Errorf("%w: %s", ErrDeclined, result.Message)
	default:
		return nil, fmt.Errorf("%s: unexpected response %q: %s", g.name, values.Get("response"), result.Message)
	}
}
