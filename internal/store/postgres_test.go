package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylabs/parley/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresGetWorkspace_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, monthly_budget, max_plugin_executions_per_day, created_at, updated_at`).
		WithArgs("ws-missing").
		WillReturnError(pgx.ErrNoRows)

	ws, err := s.GetWorkspace(context.Background(), "ws-missing")
	require.NoError(t, err)
	assert.Nil(t, ws)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetWorkspace_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name, monthly_budget, max_plugin_executions_per_day, created_at, updated_at`).
		WithArgs("ws-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "monthly_budget", "max_plugin_executions_per_day", "created_at", "updated_at"}).
			AddRow("ws-1", "Acme", 100.0, 25, now, now))

	ws, err := s.GetWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "Acme", ws.Name)
	assert.InDelta(t, 100.0, ws.MonthlyBudget, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRoutingPolicy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO routing_policies .* ON CONFLICT \(workspace_id, task_type\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "ws-1", "deep_reasoning", "openai", "gpt-4o", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRoutingPolicy(context.Background(), model.RoutingPolicy{
		WorkspaceID:       "ws-1",
		TaskType:          model.TaskDeepReasoning,
		PreferredProvider: "openai",
		PreferredModel:    "gpt-4o",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendUsage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO usage_records`).
		WithArgs(pgxmock.AnyArg(), "ws-1", "openai", "gpt-4o", 1000, 200, 0.0065, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendUsage(context.Background(), model.UsageRecord{
		WorkspaceID:      "ws-1",
		Provider:         "openai",
		Model:            "gpt-4o",
		PromptTokens:     1000,
		CompletionTokens: 200,
		EstimatedCostUSD: 0.0065,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSumUsageSince(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Now().UTC().Add(-time.Hour)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(estimated_cost_usd\), 0\) FROM usage_records`).
		WithArgs("ws-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(12.5))

	sum, err := s.SumUsageSince(context.Background(), "ws-1", since)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, sum, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDebate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM debates WHERE id = \$1`).
		WithArgs("deb-404").
		WillReturnError(pgx.ErrNoRows)

	result, err := s.GetDebate(context.Background(), "deb-404")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveDebate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO debates`).
		WithArgs("deb-1", "ws-1", "Topic", "Summary",
			pgxmock.AnyArg(), pgxmock.AnyArg(), 10, 5, 15, 50, "pending", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveDebate(context.Background(), &model.DebateResult{
		ID:             "deb-1",
		WorkspaceID:    "ws-1",
		Topic:          "Topic",
		Summary:        "Summary",
		TotalUsage:     model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		RiskScore:      50,
		ApprovalStatus: model.ApprovalPending,
		CreatedAt:      now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
