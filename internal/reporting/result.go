package reporting

import (
	"log/slog"

	"github.com/daybook/daybook/internal/shared"
)

// Result is the outcome of every facade call. On failure Data is nil and
// Message is safe to show to end users.
type Result[T any] struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Kind    shared.ErrorKind `json:"kind,omitempty"`
	Data    *T               `json:"data,omitempty"`
	Err     error            `json:"-"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: &data}
}

// fail maps err onto its kind. Storage failures are logged with the raw
// error and surface only a generic message.
func fail[T any](logger *slog.Logger, op string, err error) Result[T] {
	kind := shared.KindOf(err)
	switch kind {
	case shared.KindStorage:
		logger.Error("reporting operation failed", slog.String("op", op), slog.Any("error", err))
	case shared.KindTimeout:
		logger.Warn("reporting operation timed out", slog.String("op", op), slog.Any("error", err))
	default:
		logger.Debug("reporting operation rejected", slog.String("op", op), slog.String("kind", string(kind)), slog.Any("error", err))
	}
	return Result[T]{Success: false, Message: shared.UserSafeMessage(err), Kind: kind, Err: err}
}
