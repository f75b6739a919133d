// Package inventory is the region fan-out query engine: it asks every
// configured region which models and cross-region profiles are invokable
// right now and merges the answers into one sorted identifier set.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"modelscout/internal/awssign"
	"modelscout/internal/domain"
)

// Filters are passed through verbatim to the upstream API; they are not
// validated locally.
type Filters struct {
	Provider          string `json:"provider,omitempty"`
	OutputModality    string `json:"output_modality,omitempty"`
	InferenceType     string `json:"inference_type,omitempty"`
	CustomizationType string `json:"customization_type,omitempty"`
}

// Service queries the live inventory API across regions.
type Service struct {
	Client awssign.Factory
	Known  []string // regions queried when the caller passes none
	Logger *log.Logger
	// OnFailure, when set, is invoked once per failed region query so the
	// caller can diary the degradation. It must be safe for concurrent use.
	OnFailure func(ctx context.Context, query, region string, err error)
}

type modelList struct {
	ModelSummaries []struct {
		ModelID        string `json:"modelId"`
		ModelLifecycle struct {
			Status string `json:"status"`
		} `json:"modelLifecycle"`
	} `json:"modelSummaries"`
}

type profileList struct {
	InferenceProfileSummaries []struct {
		InferenceProfileID string `json:"inferenceProfileId"`
		Status             string `json:"status"`
	} `json:"inferenceProfileSummaries"`
}

// QueryAvailable returns the deduplicated, lexicographically sorted set of
// identifiers invokable in at least one of the given regions. An empty or
// nil region list means "all known regions". Per-region and per-query
// failures are logged and contribute nothing; an empty merged set is a
// normal outcome, not an error. The returned error is always nil and kept
// only for interface symmetry.
func (s Service) QueryAvailable(ctx context.Context, regions []string, f Filters) ([]string, error) {
	if len(regions) == 0 {
		regions = s.Known
	}
	if s.Client == nil {
		if s.Logger != nil {
			s.Logger.Warn("no signed client configured; skipping region fan-out")
		}
		return []string{}, nil
	}
	var (
		mu  sync.Mutex
		set = map[string]struct{}{}
	)
	add := func(id string) {
		if id == "" {
			return
		}
		mu.Lock()
		set[id] = struct{}{}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, region := range regions {
		region := region
		doer := s.Client(region)
		g.Go(func() error {
			s.queryModels(gctx, doer, region, f, add)
			return nil
		})
		g.Go(func() error {
			s.queryProfiles(gctx, doer, region, add)
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 && s.Logger != nil {
		s.Logger.Info("inventory fan-out returned no identifiers", "regions", len(regions))
	}
	return ids, nil
}

func (s Service) queryModels(ctx context.Context, doer awssign.Doer, region string, f Filters, add func(string)) {
	q := url.Values{}
	q.Set("byOutputModality", "TEXT")
	q.Set("byInferenceType", "ON_DEMAND")
	if f.Provider != "" {
		q.Set("byProvider", f.Provider)
	}
	if f.OutputModality != "" {
		q.Set("byOutputModality", f.OutputModality)
	}
	if f.InferenceType != "" {
		q.Set("byInferenceType", f.InferenceType)
	}
	if f.CustomizationType != "" {
		q.Set("byCustomizationType", f.CustomizationType)
	}
	u := fmt.Sprintf("https://bedrock.%s.amazonaws.com/foundation-models?%s", region, q.Encode())
	body, err := doer(ctx, "GET", u)
	if err != nil {
		s.logFailure(ctx, "foundation-models", region, err)
		return
	}
	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		s.logFailure(ctx, "foundation-models", region, err)
		return
	}
	for _, m := range list.ModelSummaries {
		if m.ModelLifecycle.Status != "" && m.ModelLifecycle.Status != string(domain.LifecycleActive) {
			continue
		}
		add(m.ModelID)
	}
}

func (s Service) queryProfiles(ctx context.Context, doer awssign.Doer, region string, add func(string)) {
	u := fmt.Sprintf("https://bedrock.%s.amazonaws.com/inference-profiles?maxResults=1000", region)
	body, err := doer(ctx, "GET", u)
	if err != nil {
		s.logFailure(ctx, "inference-profiles", region, err)
		return
	}
	var list profileList
	if err := json.Unmarshal(body, &list); err != nil {
		s.logFailure(ctx, "inference-profiles", region, err)
		return
	}
	for _, p := range list.InferenceProfileSummaries {
		if p.Status != "" && p.Status != string(domain.LifecycleActive) {
			continue
		}
		add(p.InferenceProfileID)
	}
}

// Partial availability is the normal case: different regions enable
// different subsets, so a failed region just contributes nothing.
func (s Service) logFailure(ctx context.Context, query, region string, err error) {
	if s.Logger != nil {
		s.Logger.Warn("region query failed", "query", query, "region", region, "err", err)
	}
	if s.OnFailure != nil {
		s.OnFailure(ctx, query, region, err)
	}
}
