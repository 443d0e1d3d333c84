package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

// DefaultPlatformNames is the canonical transfer platform list used when none
// is configured.
var DefaultPlatformNames = []string{"Wafacash", "Ria BIS", "Orange Money", "Free Money", "Wizall"}

// Store is the lookup port of the resolver.
type Store interface {
	LatestBefore(ctx context.Context, day time.Time, section ledger.Section, platform string) (ledger.AccountingReport, error)
	BusinessNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Resolver completes accounting reports by carrying forward empty sections
// from the nearest earlier report that holds them.
type Resolver struct {
	store     Store
	platforms []string
	logger    *slog.Logger
}

// NewResolver builds a resolver over the canonical platform names.
func NewResolver(store Store, platforms []string, logger *slog.Logger) *Resolver {
	if len(platforms) == 0 {
		platforms = DefaultPlatformNames
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, platforms: append([]string(nil), platforms...), logger: logger}
}

// Platforms returns the canonical platform names.
func (r *Resolver) Platforms() []string {
	return append([]string(nil), r.platforms...)
}

type found struct {
	report ledger.AccountingReport
	ok     bool
}

// Resolve returns the snapshot of report. Every section is resolved on its
// own; a missing fallback leaves the section empty and only storage failures
// are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, report ledger.AccountingReport) (ledger.Snapshot, error) {
	sections := ledger.ListSections()
	sectionHits := make([]found, len(sections))
	platformHits := make([]found, len(r.platforms))
	var listHit found

	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		if report.Has(section, "") {
			continue
		}
		g.Go(func() error {
			hit, err := r.latest(gctx, report.Date, section, "")
			sectionHits[i] = hit
			return err
		})
	}
	anyCanonical := false
	for i, name := range r.platforms {
		if report.Has(ledger.SectionPlatform, name) {
			anyCanonical = true
			continue
		}
		g.Go(func() error {
			hit, err := r.latest(gctx, report.Date, ledger.SectionPlatform, name)
			platformHits[i] = hit
			return err
		})
	}
	if !anyCanonical && len(report.Platforms) == 0 {
		g.Go(func() error {
			hit, err := r.latest(gctx, report.Date, ledger.SectionPlatforms, "")
			listHit = hit
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ledger.Snapshot{}, err
	}

	snap := ledger.Snapshot{AccountingReport: report, Sources: make(map[string]ledger.SectionSource)}
	for i, section := range sections {
		if hit := sectionHits[i]; hit.ok {
			snap.CopySection(hit.report, section)
			snap.Sources[ledger.SourceKey(section, "")] = source(hit.report)
		}
	}

	platforms := make([]ledger.Platform, 0, len(r.platforms))
	for i, name := range r.platforms {
		if p, ok := report.PlatformByName(name); ok {
			platforms = append(platforms, p)
			continue
		}
		if hit := platformHits[i]; hit.ok {
			if p, ok := hit.report.PlatformByName(name); ok {
				platforms = append(platforms, p)
				snap.Sources[ledger.SourceKey(ledger.SectionPlatform, name)] = source(hit.report)
			}
		}
	}
	switch {
	case len(platforms) > 0:
		snap.Platforms = platforms
	case len(report.Platforms) > 0:
		snap.Platforms = report.Platforms
	case listHit.ok:
		snap.Platforms = listHit.report.Platforms
		snap.Sources[string(ledger.SectionPlatforms)] = source(listHit.report)
	default:
		snap.Platforms = []ledger.Platform{}
	}

	entries, err := r.enrich(ctx, snap.Register.Entries)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap.Register.Entries = entries
	snap.EnsureLists()
	return snap, nil
}

func (r *Resolver) latest(ctx context.Context, day time.Time, section ledger.Section, platform string) (found, error) {
	rep, err := r.store.LatestBefore(ctx, day, section, platform)
	if errors.Is(err, shared.ErrNotFound) {
		r.logger.Debug("no earlier report for section",
			slog.String("section", ledger.SourceKey(section, platform)),
			slog.Time("before", day),
		)
		return found{}, nil
	}
	if err != nil {
		return found{}, err
	}
	return found{report: rep, ok: true}, nil
}

// enrich attaches business names to register entries. Entries whose business
// cannot be named keep their id.
func (r *Resolver) enrich(ctx context.Context, entries []ledger.RegisterEntry) ([]ledger.RegisterEntry, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, e := range entries {
		if e.Business == nil || e.Business.ID == uuid.Nil {
			continue
		}
		if _, dup := seen[e.Business.ID]; dup {
			continue
		}
		seen[e.Business.ID] = struct{}{}
		ids = append(ids, e.Business.ID)
	}
	if len(ids) == 0 {
		return entries, nil
	}
	names, err := r.store.BusinessNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.RegisterEntry, len(entries))
	for i, e := range entries {
		if e.Business != nil {
			e.Business = &ledger.BusinessRef{ID: e.Business.ID, Name: names[e.Business.ID]}
		}
		out[i] = e
	}
	return out, nil
}

func source(rep ledger.AccountingReport) ledger.SectionSource {
	return ledger.SectionSource{ReportID: rep.ID, Date: rep.Date}
}
