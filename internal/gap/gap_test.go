package gap

import (
	"strings"
	"testing"

	"modelscout/internal/domain"
)

func status(id string, hasAccess, canRequest bool) domain.AccessStatus {
	state := domain.AccessNotRequested
	if hasAccess {
		state = domain.AccessGranted
	}
	return domain.AccessStatus{ID: id, HasAccess: hasAccess, State: state, CanRequest: canRequest}
}

func TestSynthesizeGroupsByNamespace(t *testing.T) {
	statuses := []domain.AccessStatus{
		status("anthropic.claude-opus-4-20250514-v1:0", false, true),
		status("amazon.nova-premier-v1:0", false, true),
		status("anthropic.claude-sonnet-4-5-20250929-v1:0", false, true),
		status("meta.llama3-3-70b-instruct-v1:0", true, true),
	}
	groups := Synthesize(statuses, "us-west-2", "testing")
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// First-encounter order: anthropic before amazon.
	if groups[0].Provider != "anthropic" || groups[1].Provider != "amazon" {
		t.Fatalf("unexpected group order: %s, %s", groups[0].Provider, groups[1].Provider)
	}
	if len(groups[0].ModelIDs) != 2 {
		t.Fatalf("anthropic group has %d ids, want 2", len(groups[0].ModelIDs))
	}
	// Input order within the group.
	if groups[0].ModelIDs[0] != "anthropic.claude-opus-4-20250514-v1:0" {
		t.Fatalf("unexpected first id %q", groups[0].ModelIDs[0])
	}
}

func TestSynthesizeSkipsGrantedAndUnrequestable(t *testing.T) {
	statuses := []domain.AccessStatus{
		status("anthropic.claude-3-5-sonnet-20241022-v2:0", true, true),
		{ID: "vendor.retired-v1:0", HasAccess: false, State: domain.AccessDenied, CanRequest: false},
	}
	if groups := Synthesize(statuses, "us-west-2", ""); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestSynthesizeEmptyInput(t *testing.T) {
	if groups := Synthesize(nil, "us-west-2", ""); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestSynthesizeProfilePrefixIsItsOwnNamespace(t *testing.T) {
	statuses := []domain.AccessStatus{
		status("anthropic.claude-opus-4-20250514-v1:0", false, true),
		status("us.anthropic.claude-opus-4-20250514-v1:0", false, true),
	}
	groups := Synthesize(statuses, "us-east-1", "")
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2: profile prefix groups separately", len(groups))
	}
	if groups[1].Provider != "us" {
		t.Fatalf("profile group provider = %q, want us", groups[1].Provider)
	}
}

func TestNamespace(t *testing.T) {
	cases := map[string]string{
		"anthropic.claude-opus-4-20250514-v1:0": "anthropic",
		"us.amazon.nova-pro-v1:0":               "us",
		"nodots":                                "nodots",
		"":                                      "",
	}
	for id, want := range cases {
		if got := Namespace(id); got != want {
			t.Errorf("Namespace(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestRequestCommand(t *testing.T) {
	cmd := RequestCommand("us-west-2", []string{"anthropic.a-v1:0", "anthropic.b-v1:0"}, "eval work")
	want := `aws bedrock request-model-access --region us-west-2 --model-ids "anthropic.a-v1:0" "anthropic.b-v1:0" --justification "eval work"`
	if cmd != want {
		t.Fatalf("command mismatch:\n got %s\nwant %s", cmd, want)
	}
}

func TestRequestCommandNoJustification(t *testing.T) {
	cmd := RequestCommand("eu-west-1", []string{"amazon.nova-premier-v1:0"}, "")
	if strings.Contains(cmd, "--justification") {
		t.Fatalf("empty justification must be omitted: %s", cmd)
	}
	if !strings.Contains(cmd, "--region eu-west-1") {
		t.Fatalf("missing region flag: %s", cmd)
	}
}
