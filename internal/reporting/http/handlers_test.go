package reportinghttp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/aggregate"
	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/ledger/ledgertest"
	"github.com/daybook/daybook/internal/platform/httpx"
	"github.com/daybook/daybook/internal/reporting"
	"github.com/daybook/daybook/internal/settlement"
	"github.com/daybook/daybook/internal/snapshot"
)

type harness struct {
	router   http.Handler
	store    *ledgertest.Store
	failures *failureCounter
}

type failureCounter struct {
	kinds map[string]int
}

func (c *failureCounter) ObserveFailure(kind string) {
	c.kinds[kind]++
}

func newHarness(t *testing.T) harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledgertest.New()
	facade := reporting.New(reporting.Config{
		Store:    store,
		Resolver: snapshot.NewResolver(store, nil, logger),
		Engine:   aggregate.NewEngine(store, nil, time.UTC, logger),
		Settler:  settlement.NewService(store, nil, logger),
		Logger:   logger,
	})
	h := NewHandler(logger, facade, time.UTC)
	h.WithNow(func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) })
	failures := &failureCounter{kinds: map[string]int{}}
	h.WithFailureObserver(failures)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return harness{router: r, store: store, failures: failures}
}

func (h harness) do(method, path, role, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set(HeaderActorID, role+"-1")
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success)
	return env.Data
}

func problem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var pd httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd), rec.Body.String())
	return pd
}

func TestSettlementFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	biz := h.store.AddBusiness("Quincaillerie 1", ledger.CategoryHardwareStore)

	rec := h.do(http.MethodPost, "/reports/operational", "manager",
		`{"business_id":"`+biz.ID.String()+`","date":"2024-05-02T00:00:00Z","cash":"1000","debts":[{"ref":"Facture Num 1","amount":"500"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := decode[ledger.OperationalReport](t, rec)

	rec = h.do(http.MethodPost, "/reports/operational/"+rep.ID.String()+"/settlements", "manager",
		`{"ref":"facture num 1","action":"partial","amount":"200"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[settlement.Outcome](t, rec)
	assert.Equal(t, settlement.StatusReduced, out.Result.Status)
	assert.Equal(t, "300", out.Report.Debts[0].Amount.String())

	rec = h.do(http.MethodPost, "/reports/operational/"+rep.ID.String()+"/settlements", "manager",
		`{"ref":"facture num 1","action":"refund"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "urn:daybook:error:invalid_action", problem(t, rec).Type)

	rec = h.do(http.MethodPost, "/reports/operational/"+rep.ID.String()+"/settlements", "manager",
		`{"ref":"unknown","action":"full"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutationsRequireRole(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/businesses", "", `{"name":"Mazda"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/businesses", "manager", `{"name":"Mazda"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/businesses", "admin", `{"name":"Mazda","category":"rental"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/businesses", "admin", `{"name":"Mazda"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/businesses", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ledger.Business](t, rec), 1)
}

func TestMalformedInputIsBadRequest(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/businesses", "admin", `{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/businesses", "admin", `{"label":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/reports/accounting/not-a-uuid", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/debts/history?from=02/05/2024", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/debts/history?kind=loan", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/reports/operational?page=two", "", "").Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/reports/accounting", "accountant",
		`{"date":"2024-05-01T00:00:00Z","banks":[{"name":"BOA","balance":"700"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/reports/accounting", "accountant", `{"date":"2024-05-02T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	current := decode[ledger.AccountingReport](t, rec)

	rec = h.do(http.MethodGet, "/reports/accounting/"+current.ID.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[ledger.Snapshot](t, rec)
	require.Len(t, snap.Banks, 1)
	assert.Equal(t, "BOA", snap.Banks[0].Name)

	rec = h.do(http.MethodGet, "/reports/accounting/"+"8c7d8f5e-4c1a-4e3b-9d2a-1f0e6b5a4c3d", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageFailureHidesDetail(t *testing.T) {
	h := newHarness(t)
	h.store.SetFailure("ListBusinesses", io.ErrUnexpectedEOF)

	rec := h.do(http.MethodGet, "/businesses", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unexpected EOF")
}

func TestDashboardEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/dashboard?at=2024-05-01&groups=rental:rental:merge", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decode[aggregate.Dashboard](t, rec)
	assert.Equal(t, 1, d.AsOf.Day())
	assert.Contains(t, d.Periods["day"].Groups, "rental")

	rec = h.do(http.MethodGet, "/dashboard?groups=broken", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOperationalReportsEndpoint(t *testing.T) {
	h := newHarness(t)
	biz := h.store.AddBusiness("Quincaillerie 1", ledger.CategoryHardwareStore)
	for _, d := range []string{"2024-05-01", "2024-05-02"} {
		rec := h.do(http.MethodPost, "/reports/operational", "manager",
			`{"business_id":"`+biz.ID.String()+`","date":"`+d+`T00:00:00Z","cash":"10"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := h.do(http.MethodGet, "/reports/operational?per_page=1&from=2024-05-01", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[reporting.Page[ledger.OperationalReport]](t, rec)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestFailuresAreObservedByKind(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/businesses", "manager", `{"name":"Mazda"}`)
	h.do(http.MethodGet, "/reports/accounting/not-a-uuid", "", "")
	h.do(http.MethodGet, "/reports/accounting/8c7d8f5e-4c1a-4e3b-9d2a-1f0e6b5a4c3d", "", "")
	h.do(http.MethodGet, "/businesses", "", "")

	assert.Equal(t, map[string]int{"forbidden": 1, "validation": 1, "not_found": 1}, h.failures.kinds)
}

func TestGetOperationalReportEndpoint(t *testing.T) {
	h := newHarness(t)
	biz := h.store.AddBusiness("Quincaillerie 4", ledger.CategoryHardwareStore)

	rec := h.do(http.MethodPost, "/reports/operational", "manager",
		`{"business_id":"`+biz.ID.String()+`","date":"2024-05-02T00:00:00Z","cash":"300","debts":[{"ref":"bon 9","amount":"120"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := decode[ledger.OperationalReport](t, rec)

	rec = h.do(http.MethodPost, "/reports/operational/"+rep.ID.String()+"/settlements", "manager",
		`{"ref":"bon 9","action":"full"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/reports/operational/"+rep.ID.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[ledger.OperationalReport](t, rec)
	assert.Equal(t, rep.ID, got.ID)
	assert.Equal(t, "Quincaillerie 4", got.BusinessName)
	assert.Empty(t, got.Debts)

	rec = h.do(http.MethodGet, "/reports/operational/"+biz.ID.String(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/reports/operational/00000000-0000-0000-0000-000000000000", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodGet, "/reports/operational/nope", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
