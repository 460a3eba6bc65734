package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/merchant"
	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/logger"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"github.com/souq/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = middleware.RequestIDKey

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDKey); id != "" {
		return id
	}
	return ""
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	requestID := getRequestID(c)
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	))
}

// BindError answers a failed ShouldBind* call. Validator failures carry
// per-field details; anything else is malformed input.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(validationErrs, getRequestID(c)))
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Malformed request body")
}

// LockConflict sends a 429 with the wait hint in the body and in Retry-After
func (h *BaseHandler) LockConflict(c *gin.Context, conflict *merchant.LockConflictError) {
	seconds := conflict.RetryAfterSeconds()
	c.Header("Retry-After", strconv.Itoa(seconds))

	resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeLockConflict, "A sync ran recently, try again later", getRequestID(c))
	resp.Error.RetryAfterSeconds = seconds
	c.JSON(http.StatusTooManyRequests, resp)
}

// HandleDomainError converts domain errors to HTTP responses
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	logger.L(c.Request.Context()).Error("Unhandled request error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// HandleError is a generic error handler that handles both domain and standard errors
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var conflict *merchant.LockConflictError
	switch {
	case errors.As(err, &conflict):
		h.LockConflict(c, conflict)
	case errors.Is(err, integration.ErrSignatureInvalid):
		h.ErrorWithCode(c, dto.ErrCodeSignatureInvalid, "Webhook signature is missing or invalid")
	case errors.Is(err, integration.ErrPlatformNotConfigured), errors.Is(err, integration.ErrWebhookNotEnabled):
		h.ErrorWithCode(c, dto.ErrCodeWebhookNotConfigured, "Webhooks are not configured for this platform")
	default:
		h.HandleDomainError(c, err)
	}
}
