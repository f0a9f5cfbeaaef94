package types

// API error codes shared by REST handlers.
const (
	CodeBadRequest   = "CIRCUIT_400"
	CodeUnauthorized = "CIRCUIT_401"
	CodeForbidden    = "CIRCUIT_403"
	CodeNotFound     = "CIRCUIT_404"
	CodeConflict     = "CIRCUIT_409"
	CodeUnavailable  = "CIRCUIT_503"
	CodeInternal     = "CIRCUIT_500"
	CodeIncompatible = "ELECTRICAL_422"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
