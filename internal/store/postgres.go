package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/parleylabs/parley/internal/db"
	"github.com/parleylabs/parley/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	monthly_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_plugin_executions_per_day INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS routing_policies (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	workspace_id         TEXT NOT NULL REFERENCES workspaces(id),
	task_type            TEXT NOT NULL,
	preferred_provider   TEXT NOT NULL DEFAULT '',
	preferred_model      TEXT NOT NULL DEFAULT '',
	cost_efficiency_mode BOOLEAN NOT NULL DEFAULT false,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(workspace_id, task_type)
);

CREATE TABLE IF NOT EXISTS usage_records (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	workspace_id       TEXT NOT NULL,
	provider           TEXT NOT NULL,
	model              TEXT NOT NULL,
	prompt_tokens      INTEGER NOT NULL,
	completion_tokens  INTEGER NOT NULL,
	estimated_cost_usd DOUBLE PRECISION NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS debates (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL DEFAULT '',
	topic             TEXT NOT NULL,
	summary           TEXT NOT NULL DEFAULT '',
	rounds            JSONB NOT NULL,
	history           JSONB NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	risk_score        INTEGER NOT NULL DEFAULT 0,
	approval_status   TEXT NOT NULL DEFAULT 'pending',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_routing_policies_workspace ON routing_policies(workspace_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_workspace_time ON usage_records(workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_debates_workspace ON debates(workspace_id);
CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, monthly_budget, max_plugin_executions_per_day, created_at, updated_at
		 FROM workspaces WHERE id = $1`, id)

	var ws model.Workspace
	err := row.Scan(&ws.ID, &ws.Name, &ws.MonthlyBudget, &ws.MaxPluginExecutionsPerDay, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get workspace %s", id)
	}
	return &ws, nil
}

func (s *PostgresStore) UpsertWorkspace(ctx context.Context, ws model.Workspace) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspaces (id, name, monthly_budget, max_plugin_executions_per_day)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			monthly_budget = EXCLUDED.monthly_budget,
			max_plugin_executions_per_day = EXCLUDED.max_plugin_executions_per_day,
			updated_at = now()`,
		ws.ID, ws.Name, ws.MonthlyBudget, ws.MaxPluginExecutionsPerDay,
	)
	return eris.Wrapf(err, "postgres: upsert workspace %s", ws.ID)
}

func (s *PostgresStore) GetRoutingPolicy(ctx context.Context, workspaceID string, taskType model.TaskType) (*model.RoutingPolicy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode, updated_at
		 FROM routing_policies WHERE workspace_id = $1 AND task_type = $2`,
		workspaceID, string(taskType))

	var p model.RoutingPolicy
	var taskRaw string
	err := row.Scan(&p.ID, &p.WorkspaceID, &taskRaw, &p.PreferredProvider, &p.PreferredModel, &p.CostEfficiencyMode, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get routing policy %s/%s", workspaceID, taskType)
	}
	p.TaskType = model.TaskType(taskRaw)
	return &p, nil
}

func (s *PostgresStore) UpsertRoutingPolicy(ctx context.Context, policy model.RoutingPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO routing_policies (id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (workspace_id, task_type) DO UPDATE SET
			preferred_provider = EXCLUDED.preferred_provider,
			preferred_model = EXCLUDED.preferred_model,
			cost_efficiency_mode = EXCLUDED.cost_efficiency_mode,
			updated_at = now()`,
		policy.ID, policy.WorkspaceID, string(policy.TaskType),
		policy.PreferredProvider, policy.PreferredModel, policy.CostEfficiencyMode,
	)
	return eris.Wrapf(err, "postgres: upsert routing policy %s/%s", policy.WorkspaceID, policy.TaskType)
}

func (s *PostgresStore) ListRoutingPolicies(ctx context.Context, workspaceID string) ([]model.RoutingPolicy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode, updated_at
		 FROM routing_policies WHERE workspace_id = $1 ORDER BY task_type`,
		workspaceID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list routing policies %s", workspaceID)
	}
	defer rows.Close()

	var policies []model.RoutingPolicy
	for rows.Next() {
		var p model.RoutingPolicy
		var taskRaw string
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &taskRaw, &p.PreferredProvider, &p.PreferredModel, &p.CostEfficiencyMode, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan routing policy")
		}
		p.TaskType = model.TaskType(taskRaw)
		policies = append(policies, p)
	}
	return policies, eris.Wrap(rows.Err(), "postgres: iterate routing policies")
}

func (s *PostgresStore) AppendUsage(ctx context.Context, rec model.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_records (id, workspace_id, provider, model, prompt_tokens, completion_tokens, estimated_cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.WorkspaceID, rec.Provider, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.EstimatedCostUSD, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append usage %s", rec.WorkspaceID)
}

func (s *PostgresStore) SumUsageSince(ctx context.Context, workspaceID string, since time.Time) (float64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(estimated_cost_usd), 0) FROM usage_records
		 WHERE workspace_id = $1 AND created_at >= $2`,
		workspaceID, since)

	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, eris.Wrapf(err, "postgres: sum usage %s", workspaceID)
	}
	return sum, nil
}

func (s *PostgresStore) ListUsage(ctx context.Context, workspaceID string, since time.Time, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, provider, model, prompt_tokens, completion_tokens, estimated_cost_usd, created_at
		 FROM usage_records WHERE workspace_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT $3`,
		workspaceID, since, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list usage %s", workspaceID)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Provider, &r.Model, &r.PromptTokens, &r.CompletionTokens, &r.EstimatedCostUSD, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan usage record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate usage records")
}

func (s *PostgresStore) SaveDebate(ctx context.Context, result *model.DebateResult) error {
	roundsJSON, err := json.Marshal(result.Rounds)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rounds")
	}
	historyJSON, err := json.Marshal(result.History)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal history")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO debates (id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.ID, result.WorkspaceID, result.Topic, result.Summary,
		string(roundsJSON), string(historyJSON),
		result.TotalUsage.PromptTokens, result.TotalUsage.CompletionTokens, result.TotalUsage.TotalTokens,
		result.RiskScore, string(result.ApprovalStatus), result.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save debate %s", result.ID)
}

func (s *PostgresStore) GetDebate(ctx context.Context, id string) (*model.DebateResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at
		 FROM debates WHERE id = $1`, id)

	result, err := scanDebate(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get debate %s", id)
	}
	return result, nil
}

func (s *PostgresStore) ListDebates(ctx context.Context, filter DebateFilter) ([]model.DebateResult, error) {
	query := `SELECT id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at
		FROM debates WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.WorkspaceID != "" {
		query += ` AND workspace_id = ` + arg(filter.WorkspaceID)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ` + arg(filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list debates")
	}
	defer rows.Close()

	var debates []model.DebateResult
	for rows.Next() {
		result, err := scanDebate(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan debate")
		}
		debates = append(debates, *result)
	}
	return debates, eris.Wrap(rows.Err(), "postgres: iterate debates")
}
