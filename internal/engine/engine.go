// Package engine orchestrates discovery: catalog acquisition, entitlement
// resolution, region fan-out, and gap synthesis, with the workspace diary
// recording what happened.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"modelscout/internal/access"
	"modelscout/internal/awssign"
	"modelscout/internal/catalog"
	"modelscout/internal/config"
	"modelscout/internal/domain"
	"modelscout/internal/events"
	"modelscout/internal/gap"
	"modelscout/internal/gating"
	"modelscout/internal/inventory"
	"modelscout/internal/repo"
)

// CatalogAcquirer produces the full descriptor catalog plus the name of the
// tier that served it. It never fails.
type CatalogAcquirer interface {
	Acquire(ctx context.Context) ([]domain.ResourceDescriptor, string)
}

// AccessResolver classifies identifiers by entitlement and names the tier
// that served them. It never fails.
type AccessResolver interface {
	Resolve(ctx context.Context, region string, ids []string) ([]domain.AccessStatus, string)
}

// AvailabilityQuerier fans out over regions and returns the deduplicated,
// sorted union of live identifiers.
type AvailabilityQuerier interface {
	QueryAvailable(ctx context.Context, regions []string, f inventory.Filters) ([]string, error)
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Catalog   CatalogAcquirer
	Access    AccessResolver
	Inventory AvailabilityQuerier
	Logger    *log.Logger
	Now       func() time.Time
}

// New wires the production collaborators. conn may be nil, in which case
// discovery still works but nothing is recorded.
func New(conn *sql.DB, cfg *config.Config, factory awssign.Factory, logger *log.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	gate := gating.New(cfg.Gating.Patterns)
	var cache catalog.Cache
	if conn != nil {
		cache = repo.CatalogCache{DB: conn}
	}
	inv := inventory.Service{Client: factory, Logger: logger}
	if conn != nil {
		// Failed region queries go into the diary, not just the log.
		w := events.Writer{DB: conn}
		inv.OnFailure = func(ctx context.Context, query, region string, err error) {
			werr := w.Append(ctx, nil, events.TypeRegionFailed, "", region,
				events.EventPayload{"query": query, "err": err.Error()})
			if werr != nil && logger != nil {
				logger.Warn("record region failure", "region", region, "err", werr)
			}
		}
	}
	e := Engine{
		DB:     conn,
		Config: cfg,
		Catalog: catalog.Service{
			Source: &catalog.HTTPDocumentSource{URL: cfg.Catalog.DocsURL},
			Gate:   gate,
			Cache:  cache,
			TTL:    cfg.CacheTTL(),
			Logger: logger,
		},
		Access:    access.Resolver{Client: factory, Gate: gate, Logger: logger},
		Inventory: inv,
		Logger:    logger,
		Now:       time.Now,
	}
	if conn != nil {
		e.Repo = repo.Repo{DB: conn}
		e.Events = events.Writer{DB: conn}
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// DiscoverOptions narrow one discovery run. Region defaults to the
// configured default region; empty filters match everything.
type DiscoverOptions struct {
	Region  string
	Filters inventory.Filters
}

// Discover runs the full pipeline and always returns a usable result.
// Failures along the way downgrade the data, never the call.
func (e Engine) Discover(ctx context.Context, opts DiscoverOptions) domain.DiscoveryResult {
	region := opts.Region
	if region == "" && e.Config != nil {
		region = e.Config.Discovery.DefaultRegion
	}
	started := e.now()
	runID := uuid.NewString()
	e.record(ctx, events.TypeRunStarted, runID, region, events.EventPayload{"region": region})

	descriptors, source := e.Catalog.Acquire(ctx)
	if source != catalog.SourceDocs {
		e.record(ctx, events.TypeCatalogFallback, runID, "", events.EventPayload{"source": source})
	}

	ids := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		ids = append(ids, d.ID)
	}
	statuses, accessTier := e.Access.Resolve(ctx, region, ids)
	if accessTier != access.TierEntitlementAPI {
		e.record(ctx, events.TypeAccessFallback, runID, region, events.EventPayload{"tier": accessTier})
	}

	var regions []string
	if e.Config != nil {
		regions = e.Config.Discovery.Regions
	}
	available, _ := e.Inventory.QueryAvailable(ctx, regions, opts.Filters)

	justification := ""
	if e.Config != nil {
		justification = e.Config.Request.Justification
	}
	commands := gap.Synthesize(statuses, region, justification)

	result := domain.DiscoveryResult{
		AvailableIDs:    available,
		Catalog:         descriptors,
		AccessStatuses:  statuses,
		RequestCommands: commands,
	}

	gapCount := 0
	for _, g := range commands {
		gapCount += len(g.ModelIDs)
	}
	if e.DB != nil {
		run := domain.Run{
			ID:             runID,
			Region:         region,
			StartedAt:      started.UTC().Format(time.RFC3339),
			CompletedAt:    e.now().UTC().Format(time.RFC3339),
			CatalogSource:  source,
			AvailableCount: len(available),
			CatalogCount:   len(descriptors),
			GapCount:       gapCount,
		}
		if err := e.Repo.InsertRun(ctx, run); err != nil && e.Logger != nil {
			e.Logger.Warn("record run", "err", err)
		}
	}
	e.record(ctx, events.TypeRunCompleted, runID, region, events.EventPayload{
		"catalog_source": source,
		"available":      len(available),
		"gaps":           gapCount,
	})
	return result
}

// Models acquires the catalog without touching entitlements.
func (e Engine) Models(ctx context.Context) ([]domain.ResourceDescriptor, string) {
	return e.Catalog.Acquire(ctx)
}

// Available runs the region fan-out alone.
func (e Engine) Available(ctx context.Context, f inventory.Filters) []string {
	var regions []string
	if e.Config != nil {
		regions = e.Config.Discovery.Regions
	}
	ids, _ := e.Inventory.QueryAvailable(ctx, regions, f)
	return ids
}

// ResolveAccess classifies the given identifiers, or the whole catalog
// when none are given.
func (e Engine) ResolveAccess(ctx context.Context, region string, ids []string) []domain.AccessStatus {
	if region == "" && e.Config != nil {
		region = e.Config.Discovery.DefaultRegion
	}
	if len(ids) == 0 {
		descriptors, _ := e.Catalog.Acquire(ctx)
		for _, d := range descriptors {
			ids = append(ids, d.ID)
		}
	}
	statuses, _ := e.Access.Resolve(ctx, region, ids)
	return statuses
}

// Commands resolves access for the full catalog and synthesizes the
// request commands for whatever is gapped.
func (e Engine) Commands(ctx context.Context, region, justification string) []domain.CommandGroup {
	if region == "" && e.Config != nil {
		region = e.Config.Discovery.DefaultRegion
	}
	if justification == "" && e.Config != nil {
		justification = e.Config.Request.Justification
	}
	statuses := e.ResolveAccess(ctx, region, nil)
	return gap.Synthesize(statuses, region, justification)
}

func (e Engine) record(ctx context.Context, evtType, runID, entityID string, payload events.EventPayload) {
	if e.DB == nil {
		return
	}
	if err := e.Events.Append(ctx, nil, evtType, runID, entityID, payload); err != nil && e.Logger != nil {
		e.Logger.Warn("record event", "type", evtType, "err", err)
	}
}
