// Package httpdto holds the request and response bodies of the delivery
// HTTP API. Binary fields (credentials, key packages, handshake payloads,
// group state) travel base64-encoded as JSON strings.
package httpdto

// Response is the envelope every endpoint answers with. Error and Code are
// set only on failure; Code carries the machine-readable error class
// (INVALID_REQUEST, NOT_FOUND, CONFLICT, INVALID_STATE, UNAVAILABLE).
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}
