package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/cost"
	"github.com/parleylabs/parley/internal/debate"
	"github.com/parleylabs/parley/internal/ledger"
	"github.com/parleylabs/parley/internal/model"
	"github.com/parleylabs/parley/internal/monitoring"
	"github.com/parleylabs/parley/internal/provider"
	"github.com/parleylabs/parley/internal/routing"
	"github.com/parleylabs/parley/internal/store"
	"github.com/parleylabs/parley/internal/supervisor"
)

// stubAdapter answers every completion with a fixed body, or fails when
// failWith is set.
type stubAdapter struct {
	name     string
	content  string
	failWith error
	calls    int
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Complete(ctx context.Context, req provider.Request) (*provider.Response, error) {
	a.calls++
	if a.failWith != nil {
		return nil, a.failWith
	}
	return &provider.Response{
		Content: a.content,
		Usage:   &provider.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
	}, nil
}

func (a *stubAdapter) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	return []string{"stub-1"}, nil
}

func newTestEnv(t *testing.T, adapters ...provider.Adapter) *appEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	registry := provider.NewRegistry(adapters...)
	led := ledger.New(st, cost.NewEstimator(cost.DefaultRates()))
	return &appEnv{
		Store:        st,
		Providers:    registry,
		Ledger:       led,
		Engine:       routing.NewEngine(led, st, routing.Defaults(), routing.DefaultConfig()),
		Orchestrator: debate.NewOrchestrator(registry, led),
		Supervisor:   supervisor.New(registry, "scorer", "stub-1", "key"),
		Collector:    monitoring.NewCollector(st),
	}
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Debate.DefaultRounds = 1
	c.Debate.MaxTokens = 300
	return c
}

func createWorkspace(t *testing.T, srv *httptest.Server, id string, budget float64) {
	t.Helper()
	body := fmt.Sprintf(`{"name": "Test", "monthly_budget": %f}`, budget)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/workspaces/"+id, bytes.NewBufferString(body))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWorkspaceAndBudgetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	createWorkspace(t, srv, "ws-1", 200)

	resp, err := srv.Client().Get(srv.URL + "/v1/workspaces/ws-1/budget")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status ledger.BudgetStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.InDelta(t, 200.0, status.MonthlyBudget, 1e-9)
	assert.InDelta(t, 200.0, status.Remaining, 1e-9)
}

func TestBudgetUnknownWorkspace(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/workspaces/ghost/budget")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutingResolveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	createWorkspace(t, srv, "ws-1", 200)

	resp, err := srv.Client().Get(srv.URL + "/v1/routing/resolve?workspace=ws-1&task=code_review")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decision routing.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	assert.Equal(t, "anthropic", decision.Provider)
	assert.Equal(t, "claude-3-5-sonnet", decision.Model)
}

func TestRoutingResolveBudgetExceeded(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	createWorkspace(t, srv, "ws-broke", 0)

	resp, err := srv.Client().Get(srv.URL + "/v1/routing/resolve?workspace=ws-broke&task=fast_chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestRunDebateEndpoint(t *testing.T) {
	speaker := &stubAdapter{name: "stub", content: "I concur."}
	scorer := &stubAdapter{name: "scorer", content: "15"}
	env := newTestEnv(t, speaker, scorer)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	createWorkspace(t, srv, "ws-1", 200)

	body := `{
		"workspace_id": "ws-1",
		"topic": "adopt a monorepo",
		"rounds": 2,
		"participants": [
			{"id": "a", "name": "A", "provider": "stub", "model": "stub-1", "role": "proponent"},
			{"id": "b", "name": "B", "provider": "stub", "model": "stub-1", "role": "critic"}
		]
	}`
	resp, err := srv.Client().Post(srv.URL+"/v1/debates", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.DebateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Len(t, result.Rounds, 2)
	assert.Equal(t, 15, result.RiskScore)
	assert.Equal(t, model.ApprovalApproved, result.ApprovalStatus)
	// 4 turns + 1 summary call.
	assert.Equal(t, 550, result.TotalUsage.TotalTokens)

	// Persisted and retrievable.
	getResp, err := srv.Client().Get(srv.URL + "/v1/debates/" + result.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestRunDebateValidationError(t *testing.T) {
	env := newTestEnv(t, &stubAdapter{name: "stub", content: "x"})
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/v1/debates", "application/json",
		bytes.NewBufferString(`{"topic": "", "participants": []}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunDebateTurnFailure(t *testing.T) {
	failing := &stubAdapter{name: "stub", failWith: &provider.ProviderError{
		Provider: "stub", StatusCode: 429, VendorMessage: "rate limited",
	}}
	scorer := &stubAdapter{name: "scorer", content: "50"}
	env := newTestEnv(t, failing, scorer)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	body := `{
		"topic": "retry policies",
		"participants": [{"id": "a", "name": "A", "provider": "stub", "model": "stub-1", "role": "proponent"}]
	}`
	resp, err := srv.Client().Post(srv.URL+"/v1/debates", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var detail map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, float64(1), detail["round"])
	assert.Equal(t, "a", detail["participant"])
	assert.Equal(t, float64(429), detail["vendor_status"])
}

func TestPolicyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	body := `{
		"id": "pol-1",
		"workspace_id": "ws-1",
		"task_type": "code_review",
		"preferred_provider": "openai",
		"preferred_model": "gpt-4o"
	}`
	resp, err := srv.Client().Post(srv.URL+"/v1/routing/policies", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listResp, err := srv.Client().Get(srv.URL + "/v1/routing/policies?workspace=ws-1")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var listBody struct {
		Policies []model.RoutingPolicy `json:"policies"`
		Count    int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listBody))
	require.Equal(t, 1, listBody.Count)
	assert.Equal(t, "gpt-4o", listBody.Policies[0].PreferredModel)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env, testConfig()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/metrics?lookback_hours=12")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 12, snap.LookbackHours)
}
