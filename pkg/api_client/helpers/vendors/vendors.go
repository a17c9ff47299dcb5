// Package vendors holds the outbound REST clients of the email validation
// vendors. Every client maps vendor responses onto the portal's own batch
// statuses and reports non-2xx answers as *HTTPError.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/config"
)

// ErrDisabled is returned by the registry when a vendor has no base URL.
var ErrDisabled = errors.New("vendor disabled: missing base url")

// CreatedKey is what a vendor hands back after generating a key.
type CreatedKey struct {
	Key          string
	CustomerLink string
}

// BatchStatus is the normalized answer of a batch status lookup. Status is
// one of models.BatchProcessing, models.BatchComplete or models.BatchFailed.
type BatchStatus struct {
	BatchID      string
	Status       string
	DownloadLink string
	Message      string
}

// Validator is the contract every email validation vendor implements.
type Validator interface {
	Name() string
	// LiveCredits reports whether the vendor balance must be fetched live
	// instead of trusting the locally cached counter.
	LiveCredits() bool
	// SupportsCallback reports whether the vendor calls back on completion.
	SupportsCallback() bool
	CreateKey(ctx context.Context, label string) (*CreatedKey, error)
	Credits(ctx context.Context, apiKey string) (int, error)
	AddCredits(ctx context.Context, apiKey string, amount int) error
	SubmitBatch(ctx context.Context, apiKey string, emails []string, callbackURL string) (string, error)
	BatchStatus(ctx context.Context, apiKey, batchID string) (*BatchStatus, error)
	DownloadResult(ctx context.Context, apiKey, batchID string) ([]byte, error)
}

// HTTPError carries the status and body of a failed vendor call.
type HTTPError struct {
	Vendor     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s request failed: status %d body=%s", e.Vendor, e.Endpoint, e.StatusCode, e.Body)
}

// Registry looks up validators by vendor name.
type Registry map[string]Validator

func NewRegistry(validators ...Validator) Registry {
	r := Registry{}
	for _, v := range validators {
		r.Register(v)
	}
	return r
}

// RegistryFromConfig registers every vendor that has a base URL.
func RegistryFromConfig(deeep, instantEmail config.VendorConfig) Registry {
	r := NewRegistry()
	if deeep.BaseURL != "" {
		r.Register(NewDeeepClient(deeep.BaseURL, deeep.PartnerKey))
	}
	if instantEmail.BaseURL != "" {
		r.Register(NewInstantEmailClient(instantEmail.BaseURL, instantEmail.PartnerKey))
	}
	return r
}

func (r Registry) Register(v Validator) {
	if v == nil {
		return
	}
	r[v.Name()] = v
}

func (r Registry) Get(name string) (Validator, error) {
	v, ok := r[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, name)
	}
	return v, nil
}

func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MaskKey keeps the prefix and the last four characters of a key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	prefix := ""
	if i := strings.IndexAny(key, "_-"); i > 0 && i < 6 {
		prefix = key[:i+1]
	}
	return prefix + "****" + key[len(key)-4:]
}
