package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

const dashboardView = "dashboard"

// Group is a named set of businesses sharing a category. MergeRegister folds
// main-register entries of the group into its cash total.
type Group struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	MergeRegister bool   `json:"merge_register"`
}

// ParseGroups reads "name:category[:merge]" items separated by commas.
func ParseGroups(raw string) ([]Group, error) {
	var groups []Group
	seen := make(map[string]struct{})
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("aggregate: group %q: want name:category[:merge]", item)
		}
		g := Group{Name: strings.TrimSpace(parts[0]), Category: strings.TrimSpace(parts[1])}
		if len(parts) == 3 {
			if strings.TrimSpace(parts[2]) != "merge" {
				return nil, fmt.Errorf("aggregate: group %q: unknown flag %q", item, parts[2])
			}
			g.MergeRegister = true
		}
		if _, dup := seen[g.Name]; dup {
			return nil, fmt.Errorf("aggregate: group %q declared twice", g.Name)
		}
		seen[g.Name] = struct{}{}
		groups = append(groups, g)
	}
	return groups, nil
}

// Scope selects which businesses a dashboard covers. An empty Tracked list
// tracks every business.
type Scope struct {
	Tracked []string `json:"tracked"`
	Groups  []Group  `json:"groups"`
}

func (s Scope) signature() string {
	tracked := append([]string(nil), s.Tracked...)
	sort.Strings(tracked)
	parts := []string{strings.Join(tracked, "+")}
	for _, g := range s.Groups {
		flag := ""
		if g.MergeRegister {
			flag = "m"
		}
		parts = append(parts, g.Name+"="+g.Category+flag)
	}
	return strings.Join(parts, "|")
}

// PeriodTotals are the figures of one dashboard period.
type PeriodTotals struct {
	From      time.Time                           `json:"from"`
	To        time.Time                           `json:"to"`
	Plain     ledger.OperationalTotals            `json:"plain"`
	Groups    map[string]ledger.OperationalTotals `json:"groups"`
	Turnover  Turnover                            `json:"turnover"`
	Platforms map[string]decimal.Decimal          `json:"platform_commissions"`
}

// Dashboard holds totals for every dashboard period and the latest known
// bank balances.
type Dashboard struct {
	AsOf    time.Time                      `json:"as_of"`
	Periods map[shared.Period]PeriodTotals `json:"periods"`
	Banks   []ledger.Bank                  `json:"banks"`
}

// DashboardRequest asks for the dashboard as of Now. Platforms lists the
// platforms whose commissions are broken out.
type DashboardRequest struct {
	Now       time.Time
	Scope     Scope
	Platforms []string
}

// Dashboard returns cached totals, computing them on a miss. Concurrent
// misses for the same key share one computation.
func (e *Engine) Dashboard(ctx context.Context, req DashboardRequest) (Dashboard, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	now := req.Now.In(e.loc)
	key, err := e.cache.BuildKey(ctx, "daybook", dashboardView, now.Format("2006-01-02"), req.Scope.signature(), strings.Join(req.Platforms, "+"))
	if err != nil {
		e.logger.Warn("dashboard cache unavailable, computing uncached", slog.Any("error", err))
		recordCacheMiss(dashboardView)
		return e.ComputeDashboard(ctx, now, req.Scope, req.Platforms)
	}

	var out Dashboard
	hit, err := e.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		val, err, dup := singleflightBuild(ctx, key, func(ctx context.Context) (any, error) {
			start := time.Now()
			d, err := e.ComputeDashboard(ctx, now, req.Scope, req.Platforms)
			observeBuildDuration(dashboardView, time.Since(start))
			return d, err
		})
		if dup {
			e.logger.Debug("dashboard build shared", slog.String("key", key))
		}
		return val, err
	})
	if err != nil {
		if shared.KindOf(err) != shared.KindStorage || errors.Is(err, shared.ErrStorage) {
			return Dashboard{}, err
		}
		return Dashboard{}, fmt.Errorf("aggregate: dashboard cache: %w: %w", shared.ErrStorage, err)
	}
	if hit {
		recordCacheHit(dashboardView)
	} else {
		recordCacheMiss(dashboardView)
	}
	return out, nil
}

// ComputeDashboard computes the dashboard from the ledger without caching.
func (e *Engine) ComputeDashboard(ctx context.Context, now time.Time, scope Scope, platforms []string) (Dashboard, error) {
	plain, groupNames, err := e.resolveNames(ctx, scope)
	if err != nil {
		return Dashboard{}, err
	}

	periods := shared.DashboardPeriods()
	results := make([]PeriodTotals, len(periods))
	var banks []ledger.Bank

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range periods {
		g.Go(func() error {
			pt, err := e.periodTotals(gctx, ledger.Through(p.Start(now, e.loc), now), plain, scope.Groups, groupNames, platforms)
			results[i] = pt
			return err
		})
	}
	g.Go(func() error {
		rep, err := e.store.LatestBefore(gctx, ledger.TruncateDay(now).AddDate(0, 0, 1), ledger.SectionBanks, "")
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		banks = rep.Banks
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	out := Dashboard{AsOf: now, Periods: make(map[shared.Period]PeriodTotals, len(periods)), Banks: banks}
	if out.Banks == nil {
		out.Banks = []ledger.Bank{}
	}
	for i, p := range periods {
		out.Periods[p] = results[i]
	}
	return out, nil
}

func (e *Engine) periodTotals(ctx context.Context, w ledger.Window, plain []string, groups []Group, groupNames map[string][]string, platforms []string) (PeriodTotals, error) {
	pt := PeriodTotals{
		From:      w.From,
		To:        w.To,
		Groups:    make(map[string]ledger.OperationalTotals, len(groups)),
		Platforms: make(map[string]decimal.Decimal, len(platforms)),
	}
	var err error
	if pt.Plain, err = e.Operational(ctx, w, plain); err != nil {
		return PeriodTotals{}, err
	}
	for _, grp := range groups {
		names := groupNames[grp.Name]
		var totals ledger.OperationalTotals
		if grp.MergeRegister {
			totals, err = e.Locations(ctx, w, names)
		} else {
			totals, err = e.Operational(ctx, w, names)
		}
		if err != nil {
			return PeriodTotals{}, err
		}
		pt.Groups[grp.Name] = totals
	}
	commissions, err := e.store.SumCommission(ctx, w, "")
	if err != nil {
		return PeriodTotals{}, err
	}
	entries, err := e.store.SumRegisterEntries(ctx, w, nil)
	if err != nil {
		return PeriodTotals{}, err
	}
	pt.Turnover = turnoverOf(pt.Plain, commissions, entries)
	for _, name := range platforms {
		c, err := e.CommissionForPlatform(ctx, name, w)
		if err != nil {
			return PeriodTotals{}, err
		}
		pt.Platforms[name] = c
	}
	return pt, nil
}

// resolveNames maps the scope onto business names. plain is nil when every
// business is tracked; group name lists are never nil.
func (e *Engine) resolveNames(ctx context.Context, scope Scope) ([]string, map[string][]string, error) {
	businesses, err := e.store.ListBusinesses(ctx)
	if err != nil {
		return nil, nil, err
	}
	byCategory := make(map[string][]string)
	for _, b := range businesses {
		byCategory[b.Category] = append(byCategory[b.Category], b.Name)
	}
	var plain []string
	if len(scope.Tracked) > 0 {
		plain = []string{}
		for _, c := range scope.Tracked {
			plain = append(plain, byCategory[c]...)
		}
	}
	groups := make(map[string][]string, len(scope.Groups))
	for _, g := range scope.Groups {
		groups[g.Name] = append([]string{}, byCategory[g.Category]...)
	}
	return plain, groups, nil
}
