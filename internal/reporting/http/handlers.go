// Package reportinghttp exposes the reporting facade over JSON HTTP.
package reportinghttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/aggregate"
	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/platform/httpx"
	"github.com/daybook/daybook/internal/reporting"
	"github.com/daybook/daybook/internal/settlement"
	"github.com/daybook/daybook/internal/shared"
)

const dateLayout = "2006-01-02"

// Service is the facade contract used by the handler.
type Service interface {
	GetReconciledSnapshot(ctx context.Context, id uuid.UUID) reporting.Result[ledger.Snapshot]
	GetDashboardTotals(ctx context.Context, req reporting.DashboardRequest) reporting.Result[aggregate.Dashboard]
	Settle(ctx context.Context, cmd settlement.Command) reporting.Result[settlement.Outcome]
	ToggleDebtStatus(ctx context.Context, actor shared.Actor, reportID, debtID uuid.UUID) reporting.Result[ledger.AccountingReport]
	SubmitOperationalReport(ctx context.Context, actor shared.Actor, in reporting.OperationalInput) reporting.Result[ledger.OperationalReport]
	AmendOperationalReport(ctx context.Context, actor shared.Actor, id uuid.UUID, version int64, in reporting.OperationalInput) reporting.Result[ledger.OperationalReport]
	GetOperationalReport(ctx context.Context, id uuid.UUID) reporting.Result[ledger.OperationalReport]
	SubmitAccountingReport(ctx context.Context, actor shared.Actor, rep ledger.AccountingReport) reporting.Result[ledger.AccountingReport]
	ListOperationalReports(ctx context.Context, filter reporting.ListFilter) reporting.Result[reporting.Page[ledger.OperationalReport]]
	CreateBusiness(ctx context.Context, actor shared.Actor, name, category string) reporting.Result[ledger.Business]
	ListBusinesses(ctx context.Context) reporting.Result[[]ledger.Business]
	DebtHistory(ctx context.Context, from, to time.Time, kind ledger.LineKind) reporting.Result[[]ledger.HistoryLine]
	RentalEntries(ctx context.Context) reporting.Result[[]ledger.CategoryEntry]
	AccountingDebts(ctx context.Context) reporting.Result[[]ledger.AccountingDebt]
}

// FailureObserver counts failed API calls by error kind.
type FailureObserver interface {
	ObserveFailure(kind string)
}

// Handler serves the daybook JSON API.
type Handler struct {
	logger     *slog.Logger
	service    Service
	loc        *time.Location
	writeLimit int
	now        func() time.Time
	observer   FailureObserver
}

// NewHandler constructs the handler. Query dates are read in loc.
func NewHandler(logger *slog.Logger, service Service, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{logger: logger, service: service, loc: loc, writeLimit: 60, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithWriteLimit sets the per-actor mutation budget per minute.
func (h *Handler) WithWriteLimit(n int) {
	if n > 0 {
		h.writeLimit = n
	}
}

// WithFailureObserver reports every failed call to o.
func (h *Handler) WithFailureObserver(o FailureObserver) {
	h.observer = o
}

func (h *Handler) observe(kind shared.ErrorKind) {
	if h.observer != nil {
		h.observer.ObserveFailure(string(kind))
	}
}

// fail rejects a request before it reaches the service.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.observe(shared.KindOf(err))
	httpx.RespondError(w, err)
}

func respond[T any](h *Handler, w http.ResponseWriter, status int, res reporting.Result[T]) {
	if !res.Success {
		h.observe(res.Kind)
		httpx.RespondKind(w, res.Kind, res.Message)
		return
	}
	httpx.JSON(w, status, res)
}

func actorOf(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", shared.ErrValidation, name)
	}
	return id, nil
}

func (h *Handler) queryDate(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, name)
	}
	return t, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", shared.ErrValidation, name)
	}
	return n, nil
}

func (h *Handler) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	respond(h, w, http.StatusOK, h.service.ListBusinesses(r.Context()))
}

type businessRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (h *Handler) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req businessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusCreated, h.service.CreateBusiness(r.Context(), actorOf(r), req.Name, req.Category))
}

func (h *Handler) handleListOperational(w http.ResponseWriter, r *http.Request) {
	var filter reporting.ListFilter
	var err error
	if filter.Page, err = queryInt(r, "page"); err != nil {
		h.fail(w, err)
		return
	}
	if filter.PerPage, err = queryInt(r, "per_page"); err != nil {
		h.fail(w, err)
		return
	}
	if filter.From, err = h.queryDate(r, "from"); err != nil {
		h.fail(w, err)
		return
	}
	if filter.To, err = h.queryDate(r, "to"); err != nil {
		h.fail(w, err)
		return
	}
	if raw := r.URL.Query().Get("business_id"); raw != "" {
		if filter.BusinessID, err = uuid.Parse(raw); err != nil {
			h.fail(w, fmt.Errorf("%w: business_id is not a valid id", shared.ErrValidation))
			return
		}
	}
	respond(h, w, http.StatusOK, h.service.ListOperationalReports(r.Context(), filter))
}

func (h *Handler) handleSubmitOperational(w http.ResponseWriter, r *http.Request) {
	var in reporting.OperationalInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusCreated, h.service.SubmitOperationalReport(r.Context(), actorOf(r), in))
}

func (h *Handler) handleGetOperational(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusOK, h.service.GetOperationalReport(r.Context(), id))
}

type amendRequest struct {
	Version int64 `json:"version"`
	reporting.OperationalInput
}

func (h *Handler) handleAmendOperational(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req amendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusOK, h.service.AmendOperationalReport(r.Context(), actorOf(r), id, req.Version, req.OperationalInput))
}

type settleRequest struct {
	Ref    string          `json:"ref"`
	Action string          `json:"action"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req settleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusOK, h.service.Settle(r.Context(), settlement.Command{
		ReportID: id,
		Ref:      req.Ref,
		Action:   req.Action,
		Amount:   req.Amount,
		Actor:    actorOf(r),
	}))
}

func (h *Handler) handleSubmitAccounting(w http.ResponseWriter, r *http.Request) {
	var rep ledger.AccountingReport
	if err := httpx.DecodeJSON(r, &rep); err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusCreated, h.service.SubmitAccountingReport(r.Context(), actorOf(r), rep))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusOK, h.service.GetReconciledSnapshot(r.Context(), id))
}

func (h *Handler) handleToggleDebt(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	debtID, err := pathID(r, "debtID")
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(h, w, http.StatusOK, h.service.ToggleDebtStatus(r.Context(), actorOf(r), reportID, debtID))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	at, err := h.queryDate(r, "at")
	if err != nil {
		h.fail(w, err)
		return
	}
	now := h.now().In(h.loc)
	if !at.IsZero() {
		// A past day is reported as of its last instant.
		now = at.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	req := reporting.DashboardRequest{Now: now}
	if raw := r.URL.Query().Get("groups"); raw != "" {
		if req.Groups, err = aggregate.ParseGroups(raw); err != nil {
			h.fail(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
			return
		}
	}
	respond(h, w, http.StatusOK, h.service.GetDashboardTotals(r.Context(), req))
}

func (h *Handler) handleDebtHistory(w http.ResponseWriter, r *http.Request) {
	from, err := h.queryDate(r, "from")
	if err != nil {
		h.fail(w, err)
		return
	}
	to, err := h.queryDate(r, "to")
	if err != nil {
		h.fail(w, err)
		return
	}
	kind := ledger.LineKind(strings.ToLower(r.URL.Query().Get("kind")))
	respond(h, w, http.StatusOK, h.service.DebtHistory(r.Context(), from, to, kind))
}

func (h *Handler) handleAccountingDebts(w http.ResponseWriter, r *http.Request) {
	respond(h, w, http.StatusOK, h.service.AccountingDebts(r.Context()))
}

func (h *Handler) handleRentalEntries(w http.ResponseWriter, r *http.Request) {
	respond(h, w, http.StatusOK, h.service.RentalEntries(r.Context()))
}
