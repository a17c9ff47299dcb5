package handler

import (
	"errors"
	"log"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/payments"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
)

// ErrorHook renders every handler error as application/problem+json.
func ErrorHook(c *gin.Context, err error) (int, interface{}) {
	apiErr := toProblem(c, err)
	c.Header("Content-Type", "application/problem+json")
	return apiErr.Status, apiErr
}

// RenderError is ErrorHook for plain gin handlers.
func RenderError(c *gin.Context, err error) {
	status, body := ErrorHook(c, err)
	c.AbortWithStatusJSON(status, body)
}

func toProblem(c *gin.Context, err error) problem.APIError {
	// 1) bind/validate errors → 400 with invalidParams
	var be tonic.BindError
	if errors.As(err, &be) || isValidationErr(err) {
		return problem.NewBadRequest("Invalid input", invalidParamsFromBinding(err)...)
	}

	// 2) own APIError → pass-through
	var apiErr problem.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	// 3) vendor answered with an error → forward its status
	var vendorErr *vendors.HTTPError
	if errors.As(err, &vendorErr) {
		return problem.NewVendorError(vendorErr.Vendor, vendorErr.StatusCode, vendorErr.Body)
	}

	switch {
	case errors.Is(err, payments.ErrDeclined):
		return problem.NewPaymentRequired(err.Error())
	case errors.Is(err, vendors.ErrDisabled), errors.Is(err, payments.ErrDisabled):
		return problem.NewServiceUnavailable(err.Error())
	}

	// 4) everything else → 500
	log.Printf("[http] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	return problem.NewInternalServerError(err.Error())
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

func invalidParamsFromBinding(err error) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []problem.InvalidParam{{Name: "body", Reason: err.Error()}}
	}
	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, problem.InvalidParam{
			Name:   lowerFirst(fe.Field()),
			Reason: humanReason(fe),
		})
	}
	return out
}

func humanReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return fe.Error()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
