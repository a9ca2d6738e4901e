package types

// SuccessEnvelope is the wire shape of every successful API response.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire shape of a domain error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for transport.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewSuccess wraps data in the success envelope.
func NewSuccess(data any) SuccessEnvelope {
	return SuccessEnvelope{Data: data}
}

// NewError builds the error envelope for a code, message and optional details.
func NewError(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message, Details: details}}
}
