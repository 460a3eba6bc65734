package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodePayloadTooLarge is used when the body exceeds the configured limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the bearer token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the bearer token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeSignatureInvalid is used when a webhook signature is missing or wrong
	ErrCodeSignatureInvalid = "ERR_SIGNATURE_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeMerchantNotFound is used when the merchant does not exist
	ErrCodeMerchantNotFound = "ERR_MERCHANT_NOT_FOUND"
	// ErrCodeProductNotFound is used when the product does not exist
	ErrCodeProductNotFound = "ERR_PRODUCT_NOT_FOUND"
)

// Marketplace error codes
const (
	// ErrCodeNotConnected is used when no platform connection can serve the request
	ErrCodeNotConnected = "ERR_NOT_CONNECTED"
	// ErrCodeLockConflict is used when a sync is running or cooling down
	ErrCodeLockConflict = "ERR_LOCK_CONFLICT"
	// ErrCodeCredentialsInvalid is used when the platform rejected stored credentials
	ErrCodeCredentialsInvalid = "ERR_CREDENTIALS_INVALID"
	// ErrCodeDestinationUnavailable is used when a product has no outbound URL
	ErrCodeDestinationUnavailable = "ERR_DESTINATION_UNAVAILABLE"
	// ErrCodeSyncFailed is used when the platform failed during a sync
	ErrCodeSyncFailed = "ERR_SYNC_FAILED"
	// ErrCodeWebhookNotConfigured is used when a platform has no webhook settings
	ErrCodeWebhookNotConfigured = "ERR_WEBHOOK_NOT_CONFIGURED"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	// Auth errors
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeSignatureInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeMerchantNotFound: http.StatusNotFound,
	ErrCodeProductNotFound:  http.StatusNotFound,

	// Marketplace errors
	ErrCodeNotConnected:           http.StatusConflict,
	ErrCodeLockConflict:           http.StatusTooManyRequests,
	ErrCodeCredentialsInvalid:     http.StatusFailedDependency,
	ErrCodeDestinationUnavailable: http.StatusUnprocessableEntity,
	ErrCodeSyncFailed:             http.StatusBadGateway,
	ErrCodeWebhookNotConfigured:   http.StatusInternalServerError,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"INVALID_INPUT":           ErrCodeBadRequest,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"FORBIDDEN":               ErrCodeForbidden,
	"MERCHANT_NOT_FOUND":      ErrCodeMerchantNotFound,
	"PRODUCT_NOT_FOUND":       ErrCodeProductNotFound,
	"NOT_CONNECTED":           ErrCodeNotConnected,
	"CREDENTIALS_INVALID":     ErrCodeCredentialsInvalid,
	"DESTINATION_UNAVAILABLE": ErrCodeDestinationUnavailable,
	"SYNC_FAILED":             ErrCodeSyncFailed,
	"INVALID_TRENDING_CONFIG": ErrCodeValidation,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
