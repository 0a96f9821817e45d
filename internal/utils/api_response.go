package utils

import "time"

// SuccessResponse and ErrorResponse are the envelope shared by the dashboard
// and threshold editor routes.
type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

func CreateErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: APIError{Code: code, Message: message},
	}
}

// CreateUpstreamErrorResponse carries the collaborator's error text separately
// from the operator-facing message.
func CreateUpstreamErrorResponse(code, message string, cause error) ErrorResponse {
	resp := CreateErrorResponse(code, message)
	if cause != nil {
		resp.Error.Details = cause.Error()
	}
	return resp
}

func CreateSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
		Meta:    &Meta{Timestamp: time.Now().UTC()},
	}
}

// CreateListResponse never renders a nil slice as null.
func CreateListResponse[T any](items []T) SuccessResponse {
	if items == nil {
		items = []T{}
	}
	count := len(items)
	resp := CreateSuccessResponse(items)
	resp.Meta.Count = &count
	return resp
}
