package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// RequestIDKey is both the request header and the gin context key carrying the request id
const RequestIDKey = "X-Request-ID"

// marketplaceTags are the binding tags understood on top of the validator builtins
var marketplaceTags = map[string]struct {
	check   validator.Func
	message string
}{
	"platform": {
		check: func(fl validator.FieldLevel) bool {
			return integration.PlatformCode(fl.Field().String()).IsValid()
		},
		message: "Must be one of: salla zid",
	},
	"event_type": {
		check: func(fl validator.FieldLevel) bool {
			return tracking.EventType(fl.Field().String()).IsEngagement()
		},
		message: "Must be one of: VIEW SAVE",
	},
}

// SetupValidator registers the marketplace binding tags on gin's validator
// and reports fields under their json (or form) names.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	for tag, rule := range marketplaceTags {
		_ = v.RegisterValidation(tag, rule.check)
	}
	v.RegisterTagNameFunc(fieldName)
}

func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// FormatValidationErrors turns binding errors into the 400 body. Errors that
// are not field violations produce an empty detail list.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	var details []dto.ValidationDetail
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: describe(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes the 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)
	if requestID == "" {
		requestID = c.GetHeader(RequestIDKey)
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

func describe(fe validator.FieldError) string {
	if rule, ok := marketplaceTags[fe.Tag()]; ok {
		return rule.message
	}

	param := fe.Param()
	bound := func(prefix string) string {
		if fe.Kind() == reflect.String {
			return prefix + param + " characters"
		}
		return prefix + param
	}

	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + param
	case "min":
		return bound("Must be at least ")
	case "max":
		return bound("Must be at most ")
	case "gt":
		return "Must be greater than " + param
	case "gte":
		return "Must be greater than or equal to " + param
	case "lt":
		return "Must be less than " + param
	case "lte":
		return "Must be less than or equal to " + param
	}
	return "Invalid value"
}
