package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/shared"
)

const defaultStoreTimeout = 5 * time.Second

// Repository provides PostgreSQL backed persistence for reports and businesses.
// Sub-lists are stored as JSONB so each report stays a single atomic row.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a repository. Every call is bounded by timeout.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Repository{pool: pool, timeout: timeout}
}

func (r *Repository) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// storageErr maps driver failures onto the shared error kinds.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("ledger: %s: %w", op, shared.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ledger: %s: %w", op, shared.ErrTimeout)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("ledger: %s: %w: %s", op, shared.ErrConflict, pgErr.ConstraintName)
		case "23503":
			// The referenced business or report does not exist.
			return fmt.Errorf("ledger: %s: %w: %s", op, shared.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("ledger: %s: %w: %w", op, shared.ErrStorage, err)
}

func dateArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return TruncateDay(t)
}

// --- Businesses ---

// CreateBusiness inserts a business. A duplicate name yields shared.ErrConflict.
func (r *Repository) CreateBusiness(ctx context.Context, b Business) (Business, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO businesses (id, name, category) VALUES ($1, $2, $3) RETURNING created_at`,
		b.ID.String(), b.Name, b.Category,
	).Scan(&b.CreatedAt)
	if err != nil {
		return Business{}, storageErr("create business", err)
	}
	return b, nil
}

// ListBusinesses returns all businesses ordered by name.
func (r *Repository) ListBusinesses(ctx context.Context) ([]Business, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT id, name, category, created_at FROM businesses ORDER BY name`)
	if err != nil {
		return nil, storageErr("list businesses", err)
	}
	defer rows.Close()

	var out []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.CreatedAt); err != nil {
			return nil, storageErr("scan business", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list businesses", err)
	}
	return out, nil
}

// BusinessNames resolves ids to names in one query. Unknown ids are absent
// from the result.
func (r *Repository) BusinessNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM businesses WHERE id = ANY($1::uuid[])`, raw)
	if err != nil {
		return nil, storageErr("business names", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, storageErr("scan business name", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("business names", err)
	}
	return names, nil
}

// --- Operational reports ---

const operationalColumns = `o.id, o.business_id, b.name, o.submitter_id, o.report_date,
	o.cash, o.mobile_money_a, o.mobile_money_b, o.sales, o.debts, o.settlements,
	o.cash_outflows, o.transfer_out, o.version, o.created_at, o.updated_at`

func scanOperational(row pgx.Row) (OperationalReport, error) {
	var rep OperationalReport
	err := row.Scan(
		&rep.ID, &rep.BusinessID, &rep.BusinessName, &rep.SubmitterID, &rep.Date,
		&rep.Cash, &rep.MobileMoneyA, &rep.MobileMoneyB, &rep.Sales, &rep.Debts, &rep.Settlements,
		&rep.CashOutflows, &rep.TransferOut, &rep.Version, &rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		return OperationalReport{}, err
	}
	rep.EnsureLists()
	return rep, nil
}

// InsertOperationalReport persists a new report with version 1. A second
// report for the same business, submitter and day yields shared.ErrConflict.
func (r *Repository) InsertOperationalReport(ctx context.Context, rep OperationalReport) (OperationalReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	rep.Date = TruncateDay(rep.Date)
	rep.EnsureLists()
	rep.Version = 1
	err := r.pool.QueryRow(ctx, `
		INSERT INTO operational_reports (
			id, business_id, submitter_id, report_date, cash, mobile_money_a, mobile_money_b,
			sales, debts, settlements, cash_outflows, transfer_out, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		RETURNING created_at, updated_at`,
		rep.ID.String(), rep.BusinessID.String(), rep.SubmitterID, rep.Date,
		rep.Cash, rep.MobileMoneyA, rep.MobileMoneyB,
		rep.Sales, rep.Debts, rep.Settlements, rep.CashOutflows, rep.TransferOut,
	).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return OperationalReport{}, storageErr("insert operational report", err)
	}
	return rep, nil
}

// GetOperationalReport loads a report with its business name.
func (r *Repository) GetOperationalReport(ctx context.Context, id uuid.UUID) (OperationalReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	row := r.pool.QueryRow(ctx, `SELECT `+operationalColumns+`
		FROM operational_reports o JOIN businesses b ON b.id = o.business_id
		WHERE o.id = $1`, id.String())
	rep, err := scanOperational(row)
	if err != nil {
		return OperationalReport{}, storageErr("get operational report", err)
	}
	return rep, nil
}

// UpdateOperationalReport replaces the mutable fields of rep when the stored
// version still equals rep.Version, and bumps the version. A stale version
// yields shared.ErrConflict.
func (r *Repository) UpdateOperationalReport(ctx context.Context, rep OperationalReport) (OperationalReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rep.EnsureLists()
	err := r.pool.QueryRow(ctx, `
		UPDATE operational_reports SET
			cash = $3, mobile_money_a = $4, mobile_money_b = $5,
			sales = $6, debts = $7, settlements = $8, cash_outflows = $9, transfer_out = $10,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		rep.ID.String(), rep.Version,
		rep.Cash, rep.MobileMoneyA, rep.MobileMoneyB,
		rep.Sales, rep.Debts, rep.Settlements, rep.CashOutflows, rep.TransferOut,
	).Scan(&rep.Version, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OperationalReport{}, r.versionMiss(ctx, "operational_reports", rep.ID)
	}
	if err != nil {
		return OperationalReport{}, storageErr("update operational report", err)
	}
	return rep, nil
}

// versionMiss tells a missing row from a stale version.
func (r *Repository) versionMiss(ctx context.Context, table string, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return storageErr("check "+table, err)
	}
	if !exists {
		return fmt.Errorf("ledger: %s %s: %w", table, id, shared.ErrNotFound)
	}
	return fmt.Errorf("ledger: %s %s: stale version: %w", table, id, shared.ErrConflict)
}

// ListOperationalReports returns a page of reports, newest first, and the
// total number of matching rows.
func (r *Repository) ListOperationalReports(ctx context.Context, f ReportFilter) ([]OperationalReport, int, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	var businessID any
	if f.BusinessID != uuid.Nil {
		businessID = f.BusinessID.String()
	}
	const where = `WHERE ($1::date IS NULL OR o.report_date >= $1)
		AND ($2::date IS NULL OR o.report_date <= $2)
		AND ($3::uuid IS NULL OR o.business_id = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operational_reports o `+where,
		dateArg(f.From), dateArg(f.To), businessID).Scan(&total); err != nil {
		return nil, 0, storageErr("count operational reports", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT `+operationalColumns+`
		FROM operational_reports o JOIN businesses b ON b.id = o.business_id `+where+`
		ORDER BY o.report_date DESC, o.created_at DESC
		LIMIT $4 OFFSET $5`,
		dateArg(f.From), dateArg(f.To), businessID, limit, f.Offset)
	if err != nil {
		return nil, 0, storageErr("list operational reports", err)
	}
	defer rows.Close()

	reports := make([]OperationalReport, 0, limit)
	for rows.Next() {
		rep, err := scanOperational(rows)
		if err != nil {
			return nil, 0, storageErr("scan operational report", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("list operational reports", err)
	}
	return reports, total, nil
}

// --- Accounting reports ---

const accountingColumns = `id, seq, report_date, author_id, banks, register_balance, register_entries,
	register_outflows, platforms, root_debts, settlement, version, created_at`

func scanAccounting(row pgx.Row) (AccountingReport, error) {
	var rep AccountingReport
	var balance decimal.NullDecimal
	err := row.Scan(
		&rep.ID, &rep.Seq, &rep.Date, &rep.AuthorID, &rep.Banks, &balance, &rep.Register.Entries,
		&rep.Register.Outflows, &rep.Platforms, &rep.RootDebts, &rep.Settlement, &rep.Version, &rep.CreatedAt,
	)
	if err != nil {
		return AccountingReport{}, err
	}
	if balance.Valid {
		b := balance.Decimal
		rep.Register.Balance = &b
	}
	rep.EnsureLists()
	return rep, nil
}

func balanceArg(b *decimal.Decimal) any {
	if b == nil {
		return nil
	}
	return *b
}

// InsertAccountingReport persists a new accounting report.
func (r *Repository) InsertAccountingReport(ctx context.Context, rep AccountingReport) (AccountingReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	rep.Date = TruncateDay(rep.Date)
	rep.EnsureLists()
	rep.Version = 1
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounting_reports (
			id, report_date, author_id, banks, register_balance, register_entries,
			register_outflows, platforms, root_debts, settlement, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING seq, created_at`,
		rep.ID.String(), rep.Date, rep.AuthorID, rep.Banks, balanceArg(rep.Register.Balance),
		rep.Register.Entries, rep.Register.Outflows, rep.Platforms, rep.RootDebts, rep.Settlement,
	).Scan(&rep.Seq, &rep.CreatedAt)
	if err != nil {
		return AccountingReport{}, storageErr("insert accounting report", err)
	}
	return rep, nil
}

// GetAccountingReport loads an accounting report by id.
func (r *Repository) GetAccountingReport(ctx context.Context, id uuid.UUID) (AccountingReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rep, err := scanAccounting(r.pool.QueryRow(ctx, `SELECT `+accountingColumns+` FROM accounting_reports WHERE id = $1`, id.String()))
	if err != nil {
		return AccountingReport{}, storageErr("get accounting report", err)
	}
	return rep, nil
}

// UpdateAccountingReport rewrites the debt lists of rep under a version check.
// Only debt statuses change after submission.
func (r *Repository) UpdateAccountingReport(ctx context.Context, rep AccountingReport) (AccountingReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rep.EnsureLists()
	err := r.pool.QueryRow(ctx, `
		UPDATE accounting_reports SET platforms = $3, root_debts = $4, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`,
		rep.ID.String(), rep.Version, rep.Platforms, rep.RootDebts,
	).Scan(&rep.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountingReport{}, r.versionMiss(ctx, "accounting_reports", rep.ID)
	}
	if err != nil {
		return AccountingReport{}, storageErr("update accounting report", err)
	}
	return rep, nil
}

var sectionPredicates = map[Section]string{
	SectionBanks:            `jsonb_array_length(banks) > 0`,
	SectionRegisterBalance:  `register_balance IS NOT NULL`,
	SectionRegisterEntries:  `jsonb_array_length(register_entries) > 0`,
	SectionRegisterOutflows: `jsonb_array_length(register_outflows) > 0`,
	SectionRootDebts:        `jsonb_array_length(root_debts) > 0`,
	SectionSettlement:       `settlement IS NOT NULL AND settlement <> 'null'::jsonb`,
	SectionPlatforms:        `jsonb_array_length(platforms) > 0`,
	SectionPlatform:         `platforms @> jsonb_build_array(jsonb_build_object('name', $2::text))`,
}

// LatestBefore returns the most recent report dated strictly before day that
// populates section. Ties on date are broken by insertion order, latest first.
// shared.ErrNotFound means no such report exists.
func (r *Repository) LatestBefore(ctx context.Context, day time.Time, section Section, platform string) (AccountingReport, error) {
	predicate, ok := sectionPredicates[section]
	if !ok {
		return AccountingReport{}, fmt.Errorf("ledger: unknown section %q: %w", section, shared.ErrValidation)
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	args := []any{TruncateDay(day)}
	if section == SectionPlatform {
		args = append(args, platform)
	}
	rep, err := scanAccounting(r.pool.QueryRow(ctx, `SELECT `+accountingColumns+`
		FROM accounting_reports
		WHERE report_date < $1 AND `+predicate+`
		ORDER BY report_date DESC, seq DESC
		LIMIT 1`, args...))
	if err != nil {
		return AccountingReport{}, storageErr("latest before "+string(section), err)
	}
	return rep, nil
}

// ListAccountingReports returns the reports inside w, newest first.
func (r *Repository) ListAccountingReports(ctx context.Context, w Window) ([]AccountingReport, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT `+accountingColumns+`
		FROM accounting_reports
		WHERE ($1::date IS NULL OR report_date >= $1) AND ($2::date IS NULL OR report_date < $2)
		ORDER BY report_date DESC, seq DESC`, dateArg(w.From), dateArg(w.To))
	if err != nil {
		return nil, storageErr("list accounting reports", err)
	}
	defer rows.Close()
	var out []AccountingReport
	for rows.Next() {
		rep, err := scanAccounting(rows)
		if err != nil {
			return nil, storageErr("scan accounting report", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list accounting reports", err)
	}
	return out, nil
}
