package handler

import "github.com/souq/backend/internal/interfaces/http/dto"

// APIResponse documents the success envelope with a typed data field
// @Description Marketplace response envelope
type APIResponse[T any] struct {
	Success bool           `json:"success" example:"true"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ErrorResponse documents the failure envelope, e.g. ERR_LOCK_CONFLICT or ERR_VALIDATION
// @Description Marketplace error envelope
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
