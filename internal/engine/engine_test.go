package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"modelscout/internal/access"
	"modelscout/internal/awssign"
	"modelscout/internal/config"
	"modelscout/internal/db"
	"modelscout/internal/domain"
	"modelscout/internal/engine"
	"modelscout/internal/events"
	"modelscout/internal/inventory"
	"modelscout/internal/migrate"
	"modelscout/internal/repo"
)

type fakeCatalog struct {
	descs  []domain.ResourceDescriptor
	source string
}

func (f fakeCatalog) Acquire(context.Context) ([]domain.ResourceDescriptor, string) {
	return f.descs, f.source
}

type fakeAccess struct {
	grant map[string]bool
	tier  string
}

func (f fakeAccess) Resolve(_ context.Context, _ string, ids []string) ([]domain.AccessStatus, string) {
	out := make([]domain.AccessStatus, 0, len(ids))
	for _, id := range ids {
		if f.grant[id] {
			out = append(out, domain.AccessStatus{ID: id, HasAccess: true, State: domain.AccessGranted, CanRequest: true})
		} else {
			out = append(out, domain.AccessStatus{ID: id, State: domain.AccessNotRequested, CanRequest: true})
		}
	}
	tier := f.tier
	if tier == "" {
		tier = access.TierEntitlementAPI
	}
	return out, tier
}

type fakeInventory struct {
	ids []string
}

func (f fakeInventory) QueryAvailable(context.Context, []string, inventory.Filters) ([]string, error) {
	return f.ids, nil
}

func newTestEngine(t *testing.T, cat fakeCatalog, acc fakeAccess, inv fakeInventory) engine.Engine {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return engine.Engine{
		DB:        conn,
		Repo:      repo.Repo{DB: conn},
		Events:    events.Writer{DB: conn},
		Config:    config.Default(),
		Catalog:   cat,
		Access:    acc,
		Inventory: inv,
		Now:       func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func desc(id, provider string) domain.ResourceDescriptor {
	return domain.ResourceDescriptor{ID: id, ProviderName: provider, LifecycleState: domain.LifecycleActive}
}

func TestDiscoverAssemblesResult(t *testing.T) {
	cat := fakeCatalog{
		descs: []domain.ResourceDescriptor{
			desc("anthropic.claude-3-5-sonnet-20241022-v2:0", "Anthropic"),
			desc("anthropic.claude-opus-4-20250514-v1:0", "Anthropic"),
			desc("amazon.nova-premier-v1:0", "Amazon"),
		},
		source: "docs",
	}
	acc := fakeAccess{grant: map[string]bool{"anthropic.claude-3-5-sonnet-20241022-v2:0": true}}
	// Availability includes an id the catalog has never heard of.
	inv := fakeInventory{ids: []string{"anthropic.claude-3-5-sonnet-20241022-v2:0", "vendor.surprise-v1:0"}}
	e := newTestEngine(t, cat, acc, inv)

	result := e.Discover(context.Background(), engine.DiscoverOptions{})

	// availableIds pass through unfiltered by the catalog.
	if len(result.AvailableIDs) != 2 || result.AvailableIDs[1] != "vendor.surprise-v1:0" {
		t.Fatalf("availability must not be filtered by the catalog: %v", result.AvailableIDs)
	}
	if len(result.Catalog) != 3 {
		t.Fatalf("catalog size %d", len(result.Catalog))
	}
	if len(result.AccessStatuses) != 3 {
		t.Fatalf("one status per catalog entry, got %d", len(result.AccessStatuses))
	}
	if len(result.RequestCommands) != 2 {
		t.Fatalf("expected anthropic and amazon groups, got %+v", result.RequestCommands)
	}
	if result.RequestCommands[0].Provider != "anthropic" {
		t.Fatalf("first group %q", result.RequestCommands[0].Provider)
	}
	// Configured default justification flows into the command.
	if !strings.Contains(result.RequestCommands[0].Command, "--justification") {
		t.Fatalf("default justification missing: %s", result.RequestCommands[0].Command)
	}
}

func TestDiscoverRecordsRunAndEvents(t *testing.T) {
	cat := fakeCatalog{
		descs:  []domain.ResourceDescriptor{desc("amazon.nova-premier-v1:0", "Amazon")},
		source: "static",
	}
	e := newTestEngine(t, cat, fakeAccess{}, fakeInventory{ids: []string{"amazon.nova-premier-v1:0"}})

	_ = e.Discover(context.Background(), engine.DiscoverOptions{Region: "eu-west-1"})

	ctx := context.Background()
	runs, err := e.Repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Region != "eu-west-1" || run.CatalogSource != "static" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.AvailableCount != 1 || run.CatalogCount != 1 || run.GapCount != 1 {
		t.Fatalf("unexpected counts: %+v", run)
	}

	evts, err := e.Repo.ListEvents(ctx, run.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	types := map[string]bool{}
	for _, ev := range evts {
		types[ev.Type] = true
	}
	for _, want := range []string{events.TypeRunStarted, events.TypeCatalogFallback, events.TypeRunCompleted} {
		if !types[want] {
			t.Fatalf("missing %s in %v", want, types)
		}
	}
}

func TestDiscoverDocsSourceEmitsNoFallbackEvent(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{desc("a.b-v1:0", "A")}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{grant: map[string]bool{"a.b-v1:0": true}}, fakeInventory{})

	_ = e.Discover(context.Background(), engine.DiscoverOptions{})

	evts, err := e.Repo.ListEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	for _, ev := range evts {
		if ev.Type == events.TypeCatalogFallback {
			t.Fatal("docs-tier acquisition must not record a fallback event")
		}
	}
}

func TestDiscoverRecordsAccessFallback(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{desc("amazon.nova-premier-v1:0", "Amazon")}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{tier: access.TierHeuristic}, fakeInventory{})

	_ = e.Discover(context.Background(), engine.DiscoverOptions{})

	evts, err := e.Repo.ListEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	found := false
	for _, ev := range evts {
		if ev.Type == events.TypeAccessFallback {
			found = true
			if !strings.Contains(ev.Payload, access.TierHeuristic) {
				t.Fatalf("fallback event must name the tier: %s", ev.Payload)
			}
		}
	}
	if !found {
		t.Fatal("heuristic access resolution must record an access.fallback event")
	}
}

func TestDiscoverEntitlementTierEmitsNoAccessFallback(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{desc("a.b-v1:0", "A")}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{grant: map[string]bool{"a.b-v1:0": true}}, fakeInventory{})

	_ = e.Discover(context.Background(), engine.DiscoverOptions{})

	evts, err := e.Repo.ListEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	for _, ev := range evts {
		if ev.Type == events.TypeAccessFallback {
			t.Fatal("live entitlement resolution must not record a fallback event")
		}
	}
}

func TestNewWiresRegionFailuresIntoDiary(t *testing.T) {
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	factory := func(region string) awssign.Doer {
		return func(ctx context.Context, method, url string) ([]byte, error) {
			return nil, &domain.TransportError{Op: "call bedrock", URL: url, Status: 403}
		}
	}
	e := engine.New(conn, nil, factory, nil)

	ids := e.Available(context.Background(), inventory.Filters{})
	if len(ids) != 0 {
		t.Fatalf("all regions down must yield no ids: %v", ids)
	}
	evts, err := e.Repo.ListEvents(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	found := false
	for _, ev := range evts {
		if ev.Type == events.TypeRegionFailed {
			found = true
			if ev.EntityID == "" {
				t.Fatalf("region failure event must name the region: %+v", ev)
			}
		}
	}
	if !found {
		t.Fatal("failed region queries must be recorded in the diary")
	}
}

func TestDiscoverDegenerateAllEmpty(t *testing.T) {
	e := newTestEngine(t, fakeCatalog{source: "static"}, fakeAccess{}, fakeInventory{})
	result := e.Discover(context.Background(), engine.DiscoverOptions{})
	if len(result.Catalog) != 0 || len(result.AccessStatuses) != 0 || len(result.RequestCommands) != 0 {
		t.Fatalf("degenerate run must be empty, got %+v", result)
	}
}

func TestDiscoverWithoutDatabase(t *testing.T) {
	e := engine.Engine{
		Config:    config.Default(),
		Catalog:   fakeCatalog{descs: []domain.ResourceDescriptor{desc("a.b-v1:0", "A")}, source: "static"},
		Access:    fakeAccess{},
		Inventory: fakeInventory{},
	}
	result := e.Discover(context.Background(), engine.DiscoverOptions{})
	if len(result.AccessStatuses) != 1 {
		t.Fatalf("db-less discovery must still work: %+v", result)
	}
}

func TestDiscoverDefaultsRegionFromConfig(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{desc("amazon.nova-premier-v1:0", "Amazon")}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{}, fakeInventory{})
	result := e.Discover(context.Background(), engine.DiscoverOptions{})
	// Default config region is us-west-2; it must appear in the command.
	if !strings.Contains(result.RequestCommands[0].Command, "--region us-west-2") {
		t.Fatalf("default region missing: %s", result.RequestCommands[0].Command)
	}
}

func TestResolveAccessDefaultsToCatalog(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{
		desc("a.one-v1:0", "A"),
		desc("b.two-v1:0", "B"),
	}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{grant: map[string]bool{"a.one-v1:0": true}}, fakeInventory{})
	statuses := e.ResolveAccess(context.Background(), "", nil)
	if len(statuses) != 2 {
		t.Fatalf("expected catalog-wide resolution, got %+v", statuses)
	}
}

func TestCommandsUsesExplicitJustification(t *testing.T) {
	cat := fakeCatalog{descs: []domain.ResourceDescriptor{desc("amazon.nova-premier-v1:0", "Amazon")}, source: "docs"}
	e := newTestEngine(t, cat, fakeAccess{}, fakeInventory{})
	groups := e.Commands(context.Background(), "ap-southeast-2", "migration testing")
	if len(groups) != 1 {
		t.Fatalf("got %d groups", len(groups))
	}
	if !strings.Contains(groups[0].Command, `--justification "migration testing"`) {
		t.Fatalf("explicit justification missing: %s", groups[0].Command)
	}
	if !strings.Contains(groups[0].Command, "--region ap-southeast-2") {
		t.Fatalf("explicit region missing: %s", groups[0].Command)
	}
}
