package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// SumOperational totals the operational reports inside w for the named
// businesses. A nil names slice means every business; an empty one matches
// nothing. Absent values count as zero.
func (r *Repository) SumOperational(ctx context.Context, w Window, names []string) (OperationalTotals, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	var t OperationalTotals
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(o.cash), 0),
			COALESCE(SUM(o.mobile_money_a), 0),
			COALESCE(SUM(o.mobile_money_b), 0),
			COALESCE(SUM(jsonb_array_length(o.sales)), 0)::bigint,
			COALESCE(SUM((SELECT COALESCE(SUM((d->>'amount')::numeric), 0) FROM jsonb_array_elements(o.debts) d)), 0),
			COALESCE(SUM((SELECT COALESCE(SUM((s->>'amount')::numeric), 0) FROM jsonb_array_elements(o.settlements) s)), 0),
			COALESCE(SUM((SELECT COALESCE(SUM((c->>'amount')::numeric), 0) FROM jsonb_array_elements(o.cash_outflows) c)), 0),
			COALESCE(SUM(o.transfer_out), 0)
		FROM operational_reports o
		JOIN businesses b ON b.id = o.business_id
		WHERE ($1::date IS NULL OR o.report_date >= $1)
			AND ($2::date IS NULL OR o.report_date < $2)
			AND ($3::text[] IS NULL OR b.name = ANY($3))`,
		dateArg(w.From), dateArg(w.To), names,
	).Scan(&t.Cash, &t.MobileMoneyA, &t.MobileMoneyB, &t.SalesCount, &t.Debts, &t.Settlements, &t.Outflows, &t.TransferOut)
	if err != nil {
		return OperationalTotals{}, storageErr("sum operational", err)
	}
	return t, nil
}

// SumRegisterEntries totals main-register entries inside w whose business is
// one of names. A nil names slice counts every entry, attributed or not.
func (r *Repository) SumRegisterEntries(ctx context.Context, w Window, names []string) (decimal.Decimal, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM((e->>'amount')::numeric), 0)
		FROM accounting_reports a
		CROSS JOIN LATERAL jsonb_array_elements(a.register_entries) e
		LEFT JOIN businesses b ON b.id = NULLIF(e->'business'->>'id', '')::uuid
		WHERE ($1::date IS NULL OR a.report_date >= $1)
			AND ($2::date IS NULL OR a.report_date < $2)
			AND ($3::text[] IS NULL OR b.name = ANY($3))`,
		dateArg(w.From), dateArg(w.To), names,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, storageErr("sum register entries", err)
	}
	return total, nil
}

// SumCommission totals platform commissions inside w. An empty platform
// name sums every platform.
func (r *Repository) SumCommission(ctx context.Context, w Window, platform string) (decimal.Decimal, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM((p->>'commission')::numeric), 0)
		FROM accounting_reports a
		CROSS JOIN LATERAL jsonb_array_elements(a.platforms) p
		WHERE ($1::date IS NULL OR a.report_date >= $1)
			AND ($2::date IS NULL OR a.report_date < $2)
			AND ($3 = '' OR p->>'name' = $3)`,
		dateArg(w.From), dateArg(w.To), platform,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, storageErr("sum commission", err)
	}
	return total, nil
}

// DebtHistory flattens debt and settlement lines of operational reports
// inside w, newest first. kinds restricts the line kinds; empty means both.
func (r *Repository) DebtHistory(ctx context.Context, w Window, kinds []LineKind) ([]HistoryLine, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	var kindArg []string
	for _, k := range kinds {
		kindArg = append(kindArg, string(k))
	}
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, l.kind, o.report_date, b.name, l.line->>'ref', l.line->>'description',
			COALESCE((l.line->>'amount')::numeric, 0)
		FROM operational_reports o
		JOIN businesses b ON b.id = o.business_id
		CROSS JOIN LATERAL (
			SELECT 'debt' AS kind, d AS line FROM jsonb_array_elements(o.debts) d
			UNION ALL
			SELECT 'settlement' AS kind, s AS line FROM jsonb_array_elements(o.settlements) s
		) l
		WHERE ($1::date IS NULL OR o.report_date >= $1)
			AND ($2::date IS NULL OR o.report_date < $2)
			AND ($3::text[] IS NULL OR l.kind = ANY($3))
		ORDER BY o.report_date DESC, o.created_at DESC`,
		dateArg(w.From), dateArg(w.To), kindArg,
	)
	if err != nil {
		return nil, storageErr("debt history", err)
	}
	defer rows.Close()
	var out []HistoryLine
	for rows.Next() {
		var h HistoryLine
		var kind string
		if err := rows.Scan(&h.ReportID, &kind, &h.Date, &h.BusinessName, &h.Ref, &h.Description, &h.Amount); err != nil {
			return nil, storageErr("scan debt history", err)
		}
		h.Kind = LineKind(kind)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("debt history", err)
	}
	return out, nil
}

// CategoryEntries lists main-register entries attributed to businesses of
// category, newest first.
func (r *Repository) CategoryEntries(ctx context.Context, category string) ([]CategoryEntry, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT a.report_date, b.name, COALESCE(e->>'description', ''), COALESCE((e->>'amount')::numeric, 0)
		FROM accounting_reports a
		CROSS JOIN LATERAL jsonb_array_elements(a.register_entries) e
		JOIN businesses b ON b.id = NULLIF(e->'business'->>'id', '')::uuid
		WHERE b.category = $1
		ORDER BY a.report_date DESC, a.seq DESC`, category)
	if err != nil {
		return nil, storageErr("category entries", err)
	}
	defer rows.Close()
	var out []CategoryEntry
	for rows.Next() {
		var ce CategoryEntry
		if err := rows.Scan(&ce.Date, &ce.BusinessName, &ce.Description, &ce.Amount); err != nil {
			return nil, storageErr("scan category entry", err)
		}
		out = append(out, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("category entries", err)
	}
	return out, nil
}
