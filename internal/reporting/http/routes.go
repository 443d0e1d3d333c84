package reportinghttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/daybook/daybook/internal/platform/httpx"
	"github.com/daybook/daybook/internal/shared"
)

// Actor headers set by the upstream gateway.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// MountRoutes registers the daybook endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.writeLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "", "")
		}),
	)

	r.Group(func(r chi.Router) {
		r.Use(ActorFromHeaders)

		r.Get("/businesses", h.handleListBusinesses)
		r.Get("/reports/operational", h.handleListOperational)
		r.Get("/reports/operational/{id}", h.handleGetOperational)
		r.Get("/reports/accounting/{id}", h.handleSnapshot)
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/debts/history", h.handleDebtHistory)
		r.Get("/debts/accounting", h.handleAccountingDebts)
		r.Get("/rentals/entries", h.handleRentalEntries)

		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/businesses", h.handleCreateBusiness)
			r.Post("/reports/operational", h.handleSubmitOperational)
			r.Put("/reports/operational/{id}", h.handleAmendOperational)
			r.Post("/reports/operational/{id}/settlements", h.handleSettle)
			r.Post("/reports/accounting", h.handleSubmitAccounting)
			r.Post("/reports/accounting/{id}/debts/{debtID}/toggle", h.handleToggleDebt)
		})
	})
}

// ActorFromHeaders places the caller identity in the request context.
// Requests without a known role continue anonymously and fail role checks.
func ActorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: shared.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
		}
		if actor.ID == "" || !actor.Role.Valid() {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "actor:" + actor.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
