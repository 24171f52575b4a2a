package server

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	entitlementdomain "github.com/smallbiznis/audiostore/internal/entitlement/domain"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

var registerFieldNames sync.Once

// useJSONFieldNames makes validator report fields by their json tag.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindError turns a gin binding failure into field level validation errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fe.Field() + " failed " + fe.Tag(),
		})
	}
	return &ValidationErrors{Errors: out}
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_declined",
			Message: "payment declined",
		}
	case errors.Is(err, paymentdomain.ErrProcessorTimeout):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "processor_timeout",
			Message: "payment processor timed out",
		}
	case errors.Is(err, paymentdomain.ErrProcessor):
		return http.StatusBadGateway, errorPayload{
			Type:    "processor_error",
			Message: "payment processor error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		discountdomain.IsValidationError(err),
		errors.Is(err, discountdomain.ErrInvalidCode),
		errors.Is(err, discountdomain.ErrInvalidKind),
		errors.Is(err, discountdomain.ErrInvalidValue),
		errors.Is(err, discountdomain.ErrInvalidLimits),
		errors.Is(err, discountdomain.ErrInvalidWindow),
		errors.Is(err, discountdomain.ErrInvalidCartTotal),
		errors.Is(err, catalogdomain.ErrEmptyCart),
		errors.Is(err, catalogdomain.ErrCurrencyMismatch),
		errors.Is(err, catalogdomain.ErrInvalidCart),
		errors.Is(err, catalogdomain.ErrFreeContent),
		errors.Is(err, purchasedomain.ErrInvalidUser),
		errors.Is(err, purchasedomain.ErrInvalidOrder),
		errors.Is(err, purchasedomain.ErrNothingToCharge),
		errors.Is(err, paymentdomain.ErrProcessorNotFound),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, subscriptiondomain.ErrInvalidUser),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidPeriod),
		errors.Is(err, subscriptiondomain.ErrInvalidStatus),
		errors.Is(err, subscriptiondomain.ErrInvalidCharge),
		errors.Is(err, billingprofiledomain.ErrInvalidUser),
		errors.Is(err, billingprofiledomain.ErrInvalidCountry),
		errors.Is(err, invoicedomain.ErrInvalidSource):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrAudiobookNotFound),
		errors.Is(err, catalogdomain.ErrChapterNotFound),
		errors.Is(err, entitlementdomain.ErrContentNotFound),
		errors.Is(err, purchasedomain.ErrPurchaseNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, subscriptiondomain.ErrChargeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, discountdomain.ErrCodeExists),
		errors.Is(err, purchasedomain.ErrInvalidState),
		errors.Is(err, paymentdomain.ErrAlreadyCaptured),
		errors.Is(err, invoicedomain.ErrAlreadyInvoiced),
		errors.Is(err, invoicedomain.ErrPurchaseNotCompleted),
		errors.Is(err, invoicedomain.ErrInvalidState),
		errors.Is(err, subscriptiondomain.ErrChargeMismatch),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	for _, known := range []error{
		discountdomain.ErrCodeExists,
		invoicedomain.ErrAlreadyInvoiced,
		invoicedomain.ErrPurchaseNotCompleted,
		invoicedomain.ErrInvalidState,
		purchasedomain.ErrInvalidState,
		subscriptiondomain.ErrChargeMismatch,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "conflict"
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	if reason := discountdomain.ReasonOf(err); reason != "" {
		return string(reason)
	}
	for _, cause := range unwrapAll(err) {
		if msg := cause.Error(); !strings.Contains(msg, ":") {
			return msg
		}
	}
	return err.Error()
}

// unwrapAll walks the wrap chain from the outermost error inwards.
func unwrapAll(err error) []error {
	var out []error
	for err != nil {
		out = append(out, err)
		err = errors.Unwrap(err)
	}
	return out
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	return payload.Type, payload.Type
}
