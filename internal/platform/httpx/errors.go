// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/daybook/daybook/internal/shared"
)

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindValidation, shared.KindInvalidAction:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	case shared.KindNone:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807. Storage
// details never reach the client.
func RespondError(w http.ResponseWriter, err error) {
	RespondKind(w, shared.KindOf(err), shared.UserSafeMessage(err))
}

// RespondKind writes a problem response for an already classified failure.
func RespondKind(w http.ResponseWriter, kind shared.ErrorKind, detail string) {
	status := StatusOf(kind)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	Problem(w, status, http.StatusText(status), string(kind), detail)
}
