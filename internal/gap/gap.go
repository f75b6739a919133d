// Package gap turns access statuses into ready-to-run access-request
// commands, batched per provider namespace.
package gap

import (
	"fmt"
	"strings"

	"modelscout/internal/domain"
)

// Synthesize selects the gapped identifiers (no access, but requestable),
// groups them by provider namespace in first-encounter order, and renders
// one request command per group. An empty result means nothing actionable.
func Synthesize(statuses []domain.AccessStatus, region, justification string) []domain.CommandGroup {
	groups := make(map[string]int)
	var out []domain.CommandGroup
	for _, s := range statuses {
		if s.HasAccess || !s.CanRequest {
			continue
		}
		ns := Namespace(s.ID)
		idx, ok := groups[ns]
		if !ok {
			idx = len(out)
			groups[ns] = idx
			out = append(out, domain.CommandGroup{Provider: ns})
		}
		out[idx].ModelIDs = append(out[idx].ModelIDs, s.ID)
	}
	for i := range out {
		out[i].Command = RequestCommand(region, out[i].ModelIDs, justification)
	}
	return out
}

// Namespace is the identifier segment before the first dot, or the whole
// identifier when it has none.
func Namespace(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// RequestCommand renders one access-request CLI invocation for a batch of
// identifiers. Identifiers keep their given order.
func RequestCommand(region string, ids []string, justification string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "aws bedrock request-model-access --region %s --model-ids", region)
	for _, id := range ids {
		fmt.Fprintf(&b, " %q", id)
	}
	if justification != "" {
		fmt.Fprintf(&b, " --justification %q", justification)
	}
	return b.String()
}
