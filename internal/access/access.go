// Package access resolves per-descriptor entitlement: which catalog
// identifiers the account can invoke today.
package access

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"modelscout/internal/awssign"
	"modelscout/internal/domain"
	"modelscout/internal/fallback"
	"modelscout/internal/gating"
)

// Resolution tier names, reported back to callers for the run diary.
const (
	TierEntitlementAPI = "entitlement-api"
	TierHeuristic      = "heuristic"
)

// Resolver classifies identifiers via one live entitlement query, falling
// back to the gated-family heuristic when the query fails. Resolve never
// fails and always returns one status per requested identifier, in input
// order.
type Resolver struct {
	Client awssign.Factory
	Gate   gating.Gate
	Logger *log.Logger
}

type accessList struct {
	ModelAccessSummaries []struct {
		ModelID    string `json:"modelId"`
		Status     string `json:"status"`
		CanRequest *bool  `json:"canRequest,omitempty"`
	} `json:"modelAccessSummaries"`
}

// Resolve returns one AccessStatus per identifier against the given
// region, plus the name of the tier that served them.
func (r Resolver) Resolve(ctx context.Context, region string, ids []string) ([]domain.AccessStatus, string) {
	statuses, tier, err := fallback.Chain(ctx, r.Logger,
		fallback.Tier[[]domain.AccessStatus]{Name: TierEntitlementAPI, Run: func(ctx context.Context) ([]domain.AccessStatus, error) {
			return r.fromAPI(ctx, region, ids)
		}},
		fallback.Tier[[]domain.AccessStatus]{Name: TierHeuristic, Run: func(context.Context) ([]domain.AccessStatus, error) {
			return r.fromHeuristic(ids), nil
		}},
	)
	if err != nil {
		// Unreachable: the heuristic tier cannot fail.
		return r.fromHeuristic(ids), TierHeuristic
	}
	return statuses, tier
}

// fromAPI issues the single live entitlement query for the region, builds
// the membership map keyed by identifier, and classifies every requested
// identifier against it. Identifiers absent from the response are
// NOT_REQUESTED.
func (r Resolver) fromAPI(ctx context.Context, region string, ids []string) ([]domain.AccessStatus, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("no signed client configured")
	}
	u := fmt.Sprintf("https://bedrock.%s.amazonaws.com/model-access", region)
	body, err := r.Client(region)(ctx, "GET", u)
	if err != nil {
		return nil, err
	}
	var list accessList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &domain.ParseError{Reason: "entitlement response: " + err.Error()}
	}
	type entitlement struct {
		state      domain.AccessState
		canRequest bool
	}
	byID := make(map[string]entitlement, len(list.ModelAccessSummaries))
	for _, s := range list.ModelAccessSummaries {
		if s.ModelID == "" {
			continue
		}
		ent := entitlement{state: normalizeState(s.Status), canRequest: true}
		// canRequest defaults to true in this tier, but an explicit
		// upstream false is honored: a model the account can never
		// request should not be offered a request command.
		if s.CanRequest != nil {
			ent.canRequest = *s.CanRequest
		}
		byID[s.ModelID] = ent
	}
	statuses := make([]domain.AccessStatus, 0, len(ids))
	for _, id := range ids {
		ent, ok := byID[id]
		if !ok {
			statuses = append(statuses, domain.AccessStatus{
				ID: id, State: domain.AccessNotRequested, CanRequest: true,
			})
			continue
		}
		statuses = append(statuses, domain.AccessStatus{
			ID:         id,
			HasAccess:  ent.state == domain.AccessGranted,
			State:      ent.state,
			CanRequest: ent.canRequest,
		})
	}
	return statuses, nil
}

// fromHeuristic assumes access unless the identifier matches a gated
// family. PENDING and DENIED are never produced here; only live data can
// report them.
func (r Resolver) fromHeuristic(ids []string) []domain.AccessStatus {
	statuses := make([]domain.AccessStatus, 0, len(ids))
	for _, id := range ids {
		if r.Gate.RequiresApproval(id, "") {
			statuses = append(statuses, domain.AccessStatus{
				ID: id, State: domain.AccessNotRequested, CanRequest: true,
			})
			continue
		}
		statuses = append(statuses, domain.AccessStatus{
			ID: id, HasAccess: true, State: domain.AccessGranted, CanRequest: true,
		})
	}
	return statuses
}

func normalizeState(s string) domain.AccessState {
	switch domain.AccessState(s) {
	case domain.AccessGranted, domain.AccessPending, domain.AccessDenied:
		return domain.AccessState(s)
	default:
		return domain.AccessNotRequested
	}
}
