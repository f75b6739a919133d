package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"modelscout/internal/access"
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

type fakeAccess struct{ grant map[string]bool }

func (f fakeAccess) Resolve(_ context.Context, _ string, ids []string) ([]domain.AccessStatus, string) {
	out := make([]domain.AccessStatus, 0, len(ids))
	for _, id := range ids {
		if f.grant[id] {
			out = append(out, domain.AccessStatus{ID: id, HasAccess: true, State: domain.AccessGranted, CanRequest: true})
		} else {
			out = append(out, domain.AccessStatus{ID: id, State: domain.AccessNotRequested, CanRequest: true})
		}
	}
	return out, access.TierEntitlementAPI
}

type fakeInventory struct{ ids []string }

func (f fakeInventory) QueryAvailable(context.Context, []string, inventory.Filters) ([]string, error) {
	return f.ids, nil
}

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn},
		Events: events.Writer{DB: conn},
		Config: config.Default(),
		Catalog: fakeCatalog{
			descs: []domain.ResourceDescriptor{
				{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", ProviderName: "Anthropic"},
				{ID: "amazon.nova-premier-v1:0", ProviderName: "Amazon", RequiresApproval: true},
			},
			source: "docs",
		},
		Access:    fakeAccess{grant: map[string]bool{"anthropic.claude-3-5-sonnet-20241022-v2:0": true}},
		Inventory: fakeInventory{ids: []string{"anthropic.claude-3-5-sonnet-20241022-v2:0"}},
		Now:       func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) },
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/models", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (%s)", err, data)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q: %s", envelope.Error.Code, data)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv := newTestServer(t, AuthConfig{JWTSecret: "test-secret"})
	ctx := context.Background()
	if err := srv.Engine.Repo.InsertAPIKey(ctx, domain.APIKey{
		ID:      "key-1",
		Name:    "test",
		KeyHash: repo.HashAPIKey("cafebabe"),
	}); err != nil {
		t.Fatalf("insert key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/models", nil, map[string]string{"X-Api-Key": "cafebabe"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/models", nil, map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key status %d, want 401", res.StatusCode)
	}
}

func TestDiscoverEndpoint(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/discover", map[string]any{"region": "us-west-2"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("discover status %d: %s", res.StatusCode, data)
	}
	var body DiscoverResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, data)
	}
	if len(body.Catalog) != 2 || len(body.AccessStatuses) != 2 {
		t.Fatalf("unexpected result: %s", data)
	}
	if len(body.RequestCommands) != 1 || body.RequestCommands[0].Provider != "amazon" {
		t.Fatalf("unexpected commands: %s", data)
	}

	// The run shows up in /runs.
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/runs", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("runs status %d: %s", res.StatusCode, data)
	}
	var runsBody RunsResponse
	if err := json.Unmarshal(data, &runsBody); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(runsBody.Runs) != 1 || runsBody.Runs[0].Region != "us-west-2" {
		t.Fatalf("unexpected runs: %s", data)
	}
}

func TestModelsAndAvailableEndpoints(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/models", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("models status %d: %s", res.StatusCode, data)
	}
	var models ModelsResponse
	if err := json.Unmarshal(data, &models); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if models.Source != "docs" || len(models.Models) != 2 {
		t.Fatalf("unexpected models: %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/models/available", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("available status %d: %s", res.StatusCode, data)
	}
	var avail AvailableResponse
	if err := json.Unmarshal(data, &avail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(avail.IDs) != 1 {
		t.Fatalf("unexpected ids: %s", data)
	}
}

func TestCommandsEndpoint(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/commands", map[string]any{
		"region":        "eu-west-1",
		"justification": "load testing",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("commands status %d: %s", res.StatusCode, data)
	}
	var body CommandsResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Groups) != 1 {
		t.Fatalf("unexpected groups: %s", data)
	}
	cmd := body.Groups[0].Command
	if !bytes.Contains([]byte(cmd), []byte("--region eu-west-1")) {
		t.Fatalf("region missing from command: %s", cmd)
	}
}

func TestAccessEndpointSubset(t *testing.T) {
	srv := newTestServer(t, AuthConfig{Disabled: true})
	res, data := doJSON(t, srv.Client(), http.MethodGet,
		srv.URL+"/v0/access?ids=anthropic.claude-3-5-sonnet-20241022-v2:0", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("access status %d: %s", res.StatusCode, data)
	}
	var body AccessResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Statuses) != 1 || !body.Statuses[0].HasAccess {
		t.Fatalf("unexpected statuses: %s", data)
	}
	if body.Region != "us-west-2" {
		t.Fatalf("default region not applied: %s", data)
	}
}
