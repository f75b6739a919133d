package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"modelscout/internal/domain"
	"modelscout/internal/fallback"
	"modelscout/internal/gating"
)

// Snapshot is one cached catalog acquisition.
type Snapshot struct {
	FetchedAt   time.Time
	Source      string
	Descriptors []domain.ResourceDescriptor
}

// Cache stores the last successfully acquired catalog. Implementations
// decide durability; invalidation here is purely TTL-driven plus the
// explicit Invalidate call surfaced on the CLI.
type Cache interface {
	Latest(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Invalidate(ctx context.Context) error
}

// Source tier names, reported back to callers for run records.
const (
	SourceDocs   = "docs"
	SourceCache  = "cache"
	SourceStatic = "static"
)

// Service acquires the authoritative descriptor catalog, preferring
// freshness and degrading through the cache to the static list. Acquire
// never fails.
type Service struct {
	Source DocumentSource
	Gate   gating.Gate
	Cache  Cache // optional
	TTL    time.Duration
	Logger *log.Logger
	Now    func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Acquire returns the catalog and the name of the tier that produced it.
func (s Service) Acquire(ctx context.Context) ([]domain.ResourceDescriptor, string) {
	descs, source, err := fallback.Chain(ctx, s.Logger,
		fallback.Tier[[]domain.ResourceDescriptor]{Name: SourceDocs, Run: s.fromDocs},
		fallback.Tier[[]domain.ResourceDescriptor]{Name: SourceCache, Run: s.fromCache},
		fallback.Tier[[]domain.ResourceDescriptor]{Name: SourceStatic, Run: s.fromStatic},
	)
	if err != nil {
		// Unreachable: the static tier cannot fail. Kept for shape.
		return Static(s.Gate), SourceStatic
	}
	return descs, source
}

func (s Service) fromDocs(ctx context.Context) ([]domain.ResourceDescriptor, error) {
	if s.Source == nil {
		return nil, fmt.Errorf("no document source configured")
	}
	doc, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	descs, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, &domain.ParseError{Reason: "document table had no usable rows"}
	}
	descs = Enrich(descs, s.Gate)
	if s.Cache != nil {
		snap := Snapshot{FetchedAt: s.now().UTC(), Source: SourceDocs, Descriptors: descs}
		if err := s.Cache.Save(ctx, snap); err != nil && s.Logger != nil {
			s.Logger.Warn("catalog snapshot save failed", "err", err)
		}
	}
	return descs, nil
}

func (s Service) fromCache(ctx context.Context) ([]domain.ResourceDescriptor, error) {
	if s.Cache == nil {
		return nil, fmt.Errorf("no catalog cache configured")
	}
	snap, err := s.Cache.Latest(ctx)
	if err != nil {
		return nil, err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if age := s.now().UTC().Sub(snap.FetchedAt); age > ttl {
		return nil, fmt.Errorf("cached catalog is stale (age %s, ttl %s)", age.Round(time.Minute), ttl)
	}
	if len(snap.Descriptors) == 0 {
		return nil, fmt.Errorf("cached catalog is empty")
	}
	return Enrich(snap.Descriptors, s.Gate), nil
}

func (s Service) fromStatic(context.Context) ([]domain.ResourceDescriptor, error) {
	return Static(s.Gate), nil
}
