package problem

import (
	"fmt"
	"net/http"
)

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// APIError implements error + Problem Details (RFC 7807)
type APIError struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail"`
	Instance      string         `json:"instance,omitempty"`
	InvalidParams []InvalidParam `json:"invalidParams,omitempty"`
}

func (e APIError) Error() string { return e.Detail }

func newError(status int, detail string, params ...InvalidParam) APIError {
	return APIError{
		Type:          fmt.Sprintf("https://developer.mozilla.org/en-US/docs/Web/HTTP/Reference/Status/%d", status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		InvalidParams: params,
	}
}

func NewBadRequest(detail string, params ...InvalidParam) APIError {
	return newError(http.StatusBadRequest, detail, params...)
}

func NewUnauthorized(detail string) APIError {
	return newError(http.StatusUnauthorized, detail)
}

// NewPaymentRequired is returned when a key has too few credits for a request.
func NewPaymentRequired(detail string) APIError {
	return newError(http.StatusPaymentRequired, detail)
}

func NewForbidden(detail string) APIError {
	return newError(http.StatusForbidden, detail)
}

func NewNotFound(detail string, params ...InvalidParam) APIError {
	return newError(http.StatusNotFound, detail, params...)
}

func NewConflict(detail string) APIError {
	return newError(http.StatusConflict, detail)
}

func NewServiceUnavailable(detail string) APIError {
	return newError(http.StatusServiceUnavailable, detail)
}

func NewInternalServerError(detail string) APIError {
	return newError(http.StatusInternalServerError, detail)
}

// NewVendorError forwards the status a vendor answered with. Statuses outside
// the error range are reported as 502.
func NewVendorError(vendor string, status int, body string) APIError {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	e := newError(status, fmt.Sprintf("%s request failed: %s", vendor, body))
	e.Instance = vendor
	return e
}
