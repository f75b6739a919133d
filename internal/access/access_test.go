package access

import (
	"context"
	"strings"
	"testing"

	"modelscout/internal/awssign"
	"modelscout/internal/domain"
	"modelscout/internal/gating"
)

var testGate = gating.New([]string{"claude-opus-4", "claude-sonnet-4", "nova-premier"})

func fakeFactory(body string, err error) awssign.Factory {
	return func(region string) awssign.Doer {
		return func(ctx context.Context, method, url string) ([]byte, error) {
			if err != nil {
				return nil, err
			}
			if method != "GET" || !strings.Contains(url, region) {
				return nil, &domain.TransportError{Op: "unexpected call", URL: url}
			}
			return []byte(body), nil
		}
	}
}

func byID(statuses []domain.AccessStatus) map[string]domain.AccessStatus {
	m := map[string]domain.AccessStatus{}
	for _, s := range statuses {
		m[s.ID] = s
	}
	return m
}

func TestResolveFromAPI(t *testing.T) {
	body := `{"modelAccessSummaries":[
		{"modelId":"anthropic.claude-3-5-sonnet-20241022-v2:0","status":"GRANTED"},
		{"modelId":"anthropic.claude-opus-4-20250514-v1:0","status":"PENDING"},
		{"modelId":"vendor.retired-v1:0","status":"DENIED","canRequest":false},
		{"modelId":"","status":"GRANTED"}
	]}`
	r := Resolver{Client: fakeFactory(body, nil), Gate: testGate}
	ids := []string{
		"anthropic.claude-3-5-sonnet-20241022-v2:0",
		"anthropic.claude-opus-4-20250514-v1:0",
		"vendor.retired-v1:0",
		"anthropic.claude-sonnet-4-5-20250929-v1:0",
	}
	statuses, tier := r.Resolve(context.Background(), "us-west-2", ids)
	if tier != TierEntitlementAPI {
		t.Fatalf("tier = %q, want %q", tier, TierEntitlementAPI)
	}
	if len(statuses) != len(ids) {
		t.Fatalf("got %d statuses, want %d", len(statuses), len(ids))
	}
	for i, s := range statuses {
		if s.ID != ids[i] {
			t.Fatalf("statuses out of input order at %d: %q", i, s.ID)
		}
	}
	m := byID(statuses)

	granted := m["anthropic.claude-3-5-sonnet-20241022-v2:0"]
	if !granted.HasAccess || granted.State != domain.AccessGranted || !granted.CanRequest {
		t.Fatalf("granted entry wrong: %+v", granted)
	}

	pending := m["anthropic.claude-opus-4-20250514-v1:0"]
	if pending.HasAccess || pending.State != domain.AccessPending {
		t.Fatalf("pending entry wrong: %+v", pending)
	}

	denied := m["vendor.retired-v1:0"]
	if denied.HasAccess || denied.State != domain.AccessDenied || denied.CanRequest {
		t.Fatalf("denied entry wrong: %+v", denied)
	}

	// Absent from the response entirely.
	absent := m["anthropic.claude-sonnet-4-5-20250929-v1:0"]
	if absent.HasAccess || absent.State != domain.AccessNotRequested || !absent.CanRequest {
		t.Fatalf("absent entry wrong: %+v", absent)
	}
}

func TestResolveUnknownStateNormalizes(t *testing.T) {
	body := `{"modelAccessSummaries":[{"modelId":"a.b-v1:0","status":"SOMETHING_NEW"}]}`
	r := Resolver{Client: fakeFactory(body, nil), Gate: testGate}
	statuses, _ := r.Resolve(context.Background(), "us-east-1", []string{"a.b-v1:0"})
	if statuses[0].State != domain.AccessNotRequested || statuses[0].HasAccess {
		t.Fatalf("unknown state must normalize to NOT_REQUESTED: %+v", statuses[0])
	}
}

func TestResolveTransportFailureUsesHeuristic(t *testing.T) {
	r := Resolver{
		Client: fakeFactory("", &domain.TransportError{Op: "call bedrock", URL: "http://x", Status: 500}),
		Gate:   testGate,
	}
	ids := []string{
		"anthropic.claude-opus-4-20250514-v1:0",
		"anthropic.claude-3-5-sonnet-20241022-v2:0",
		"amazon.nova-premier-v1:0",
	}
	statuses, tier := r.Resolve(context.Background(), "us-west-2", ids)
	if tier != TierHeuristic {
		t.Fatalf("tier = %q, want %q", tier, TierHeuristic)
	}
	m := byID(statuses)

	gated := m["anthropic.claude-opus-4-20250514-v1:0"]
	if gated.HasAccess || gated.State != domain.AccessNotRequested || !gated.CanRequest {
		t.Fatalf("gated heuristic entry wrong: %+v", gated)
	}
	if s := m["amazon.nova-premier-v1:0"]; s.HasAccess {
		t.Fatalf("nova-premier must be assumed gapped: %+v", s)
	}

	open := m["anthropic.claude-3-5-sonnet-20241022-v2:0"]
	if !open.HasAccess || open.State != domain.AccessGranted {
		t.Fatalf("ungated heuristic entry wrong: %+v", open)
	}
}

func TestResolveMalformedResponseUsesHeuristic(t *testing.T) {
	r := Resolver{Client: fakeFactory("<html>sorry</html>", nil), Gate: testGate}
	statuses, tier := r.Resolve(context.Background(), "us-west-2", []string{"meta.llama3-3-70b-instruct-v1:0"})
	if tier != TierHeuristic {
		t.Fatalf("tier = %q, want %q", tier, TierHeuristic)
	}
	if !statuses[0].HasAccess {
		t.Fatalf("heuristic should assume access for ungated model: %+v", statuses[0])
	}
}

func TestResolveNilClientUsesHeuristic(t *testing.T) {
	r := Resolver{Gate: testGate}
	statuses, tier := r.Resolve(context.Background(), "us-west-2", []string{"amazon.nova-premier-v1:0"})
	if tier != TierHeuristic {
		t.Fatalf("tier = %q, want %q", tier, TierHeuristic)
	}
	if len(statuses) != 1 || statuses[0].HasAccess {
		t.Fatalf("nil client must resolve heuristically: %+v", statuses)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	r := Resolver{Client: fakeFactory(`{"modelAccessSummaries":[]}`, nil), Gate: testGate}
	if statuses, _ := r.Resolve(context.Background(), "us-west-2", nil); len(statuses) != 0 {
		t.Fatalf("expected no statuses, got %d", len(statuses))
	}
}
