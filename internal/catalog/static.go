package catalog

import (
	"modelscout/internal/domain"
	"modelscout/internal/gating"
)

// staticEntry is the hand-curated shape behind the Tier-2 catalog. Derived
// fields (requires_approval, release_date) are recomputed on the way out,
// so only source-of-truth columns live here.
type staticEntry struct {
	id, name, provider string
	regions            []string
	input, output      []string
	streaming          bool
}

// Known flagship models and cross-region profiles, kept current by hand.
// This list is the last-resort catalog when both the docs page and the
// snapshot cache are unavailable; it favors breadth of provider namespaces
// over completeness.
var staticEntries = []staticEntry{
	{
		id: "anthropic.claude-3-5-sonnet-20241022-v2:0", name: "Claude 3.5 Sonnet v2", provider: "Anthropic",
		regions: []string{"us-east-1", "us-west-2", "eu-central-1", "ap-northeast-1"},
		input:   []string{"Text", "Image"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "anthropic.claude-3-5-haiku-20241022-v1:0", name: "Claude 3.5 Haiku", provider: "Anthropic",
		regions: []string{"us-east-1", "us-west-2"},
		input:   []string{"Text"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "anthropic.claude-sonnet-4-5-20250929-v1:0", name: "Claude Sonnet 4.5", provider: "Anthropic",
		regions: []string{"us-east-1", "us-west-2", "eu-west-1"},
		input:   []string{"Text", "Image"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "anthropic.claude-opus-4-20250514-v1:0", name: "Claude Opus 4", provider: "Anthropic",
		regions: []string{"us-east-1", "us-west-2"},
		input:   []string{"Text", "Image"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "amazon.nova-lite-v1:0", name: "Nova Lite", provider: "Amazon",
		regions: []string{"us-east-1", "us-east-2", "us-west-2"},
		input:   []string{"Text", "Image", "Video"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "amazon.nova-pro-v1:0", name: "Nova Pro", provider: "Amazon",
		regions: []string{"us-east-1", "us-east-2", "us-west-2"},
		input:   []string{"Text", "Image", "Video"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "amazon.nova-premier-v1:0", name: "Nova Premier", provider: "Amazon",
		regions: []string{"us-east-1"},
		input:   []string{"Text", "Image", "Video"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "meta.llama3-3-70b-instruct-v1:0", name: "Llama 3.3 70B Instruct", provider: "Meta",
		regions: []string{"us-east-1", "us-west-2"},
		input:   []string{"Text"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "mistral.mistral-large-2407-v1:0", name: "Mistral Large 24.07", provider: "Mistral AI",
		regions: []string{"us-west-2", "eu-west-1"},
		input:   []string{"Text"}, output: []string{"Text"}, streaming: true,
	},
	// Cross-region aggregation profiles. Independent catalog entries; no
	// relationship to same-named direct models is assumed.
	{
		id: "us.anthropic.claude-3-5-sonnet-20241022-v2:0", name: "US Claude 3.5 Sonnet v2", provider: "Anthropic",
		input: []string{"Text", "Image"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "us.anthropic.claude-sonnet-4-5-20250929-v1:0", name: "US Claude Sonnet 4.5", provider: "Anthropic",
		input: []string{"Text", "Image"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "us.amazon.nova-pro-v1:0", name: "US Nova Pro", provider: "Amazon",
		input: []string{"Text", "Image", "Video"}, output: []string{"Text"}, streaming: true,
	},
	{
		id: "us.meta.llama3-3-70b-instruct-v1:0", name: "US Llama 3.3 70B Instruct", provider: "Meta",
		input: []string{"Text"}, output: []string{"Text"}, streaming: true,
	},
}

// Static returns the hand-curated fallback catalog, enriched. It never
// fails and never returns an empty list.
func Static(gate gating.Gate) []domain.ResourceDescriptor {
	descs := make([]domain.ResourceDescriptor, 0, len(staticEntries))
	for _, e := range staticEntries {
		descs = append(descs, domain.ResourceDescriptor{
			ID:                e.id,
			DisplayName:       e.name,
			ProviderName:      e.provider,
			Regions:           e.regions,
			InputModalities:   e.input,
			OutputModalities:  e.output,
			SupportsStreaming: e.streaming,
			LifecycleState:    domain.LifecycleActive,
		})
	}
	return Enrich(descs, gate)
}

// Enrich recomputes the derived fields for every descriptor. It is applied
// uniformly regardless of which tier produced the descriptors; upstream
// values for these two fields are never trusted.
func Enrich(descs []domain.ResourceDescriptor, gate gating.Gate) []domain.ResourceDescriptor {
	out := make([]domain.ResourceDescriptor, len(descs))
	for i, d := range descs {
		d.RequiresApproval = gate.RequiresApproval(d.ID, d.ProviderName)
		if date, ok := gating.ReleaseDate(d.ID); ok {
			d.ReleaseDate = date
		} else {
			d.ReleaseDate = ""
		}
		out[i] = d
	}
	return out
}
