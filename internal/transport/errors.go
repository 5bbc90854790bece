package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"onetee-be/internal/catalog"
	"onetee-be/internal/logger"
	"onetee-be/internal/order"
	"onetee-be/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errAdminOnly       = errors.New("admin access required")
	errInvalidID       = errors.New("invalid id")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrMissingProduct),
		errors.Is(err, order.ErrNoPurchasableItems),
		errors.Is(err, order.ErrMixedCurrency),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidCollection),
		errors.Is(err, catalog.ErrInvalidTag),
		errors.Is(err, catalog.ErrInvalidStock),
		errors.Is(err, user.ErrInvalidUser),
		errors.Is(err, errInvalidID):
		return http.StatusBadRequest

	case errors.Is(err, errUnauthenticated),
		errors.Is(err, order.ErrUnauthenticated),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, errAdminOnly),
		errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, catalog.ErrTagNotFound),
		errors.Is(err, catalog.ErrCollectionNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, order.ErrCheckoutInProgress),
		errors.Is(err, order.ErrOrderNotPayable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, catalog.ErrDuplicateSKU),
		errors.Is(err, catalog.ErrDuplicateTag),
		errors.Is(err, catalog.ErrDuplicateCollection),
		errors.Is(err, user.ErrUserExists):
		return http.StatusConflict

	case errors.Is(err, order.ErrPaymentNotConfigured),
		errors.Is(err, order.ErrPaymentUnavailable),
		errors.Is(err, catalog.ErrStorageNotConfigured),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError answers with {"error": ...}. Validation failures carry a
// "fields" map; unexpected errors are logged and hidden from the caller.
func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	log := logger.FromCtx(c.Request.Context()).With(
		zap.String("layer", "transport"),
		zap.String("route", c.FullPath()),
	)

	body := gin.H{"error": err.Error()}

	switch {
	case code == http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
		body["error"] = "internal server error"
	case code == http.StatusServiceUnavailable:
		log.Warn("dependency unavailable", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			body["error"] = "request timed out, retry later"
		}
		c.Header("Retry-After", "5")
	}

	var verrs validator.ValidationErrors
	if code == http.StatusBadRequest && errors.As(err, &verrs) {
		body["error"] = "validation failed"
		body["fields"] = FormatValidationError(verrs)
	}

	c.AbortWithStatusJSON(code, body)
}

// bindJSON decodes the request body and answers 400 itself on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"fields": FormatValidationError(verrs),
			})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	return true
}

func FormatValidationError(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, err := range verrs {
		field := strings.ToLower(err.Field())

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "gt":
			fields[field] = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "url":
			fields[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return fields
}
