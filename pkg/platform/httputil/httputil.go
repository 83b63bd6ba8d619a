// Package httputil writes the JSON envelope shared by every endpoint:
// {success, message, data} on success and {success, message, error, details} on failure.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "kycdesk/pkg/domain-errors"
)

// Envelope is the response body for every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

const internalMessage = "Internal Server Error"

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError maps err to a status and writes a failure envelope. Messages of
// internal errors are replaced so causes never reach the caller.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		de = dErrors.New(dErrors.CodeInternal, internalMessage)
	}
	status := StatusFor(de.Code)

	env := Envelope{Success: false, Message: de.Message, Error: string(de.Code), Details: de.Details}
	if de.Code == dErrors.CodeInternal {
		env.Message = internalMessage
		env.Details = nil
	}
	WriteJSON(w, status, env)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeAlreadyUsed, dErrors.CodeExpired,
		dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodePayloadInvalid:
		return http.StatusBadRequest
	case dErrors.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case dErrors.CodePreconditionFailed, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
