package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/parleylabs/parley/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	monthly_budget  REAL NOT NULL DEFAULT 0,
	max_plugin_executions_per_day INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS routing_policies (
	id                   TEXT PRIMARY KEY,
	workspace_id         TEXT NOT NULL REFERENCES workspaces(id),
	task_type            TEXT NOT NULL,
	preferred_provider   TEXT NOT NULL DEFAULT '',
	preferred_model      TEXT NOT NULL DEFAULT '',
	cost_efficiency_mode INTEGER NOT NULL DEFAULT 0,
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(workspace_id, task_type)
);

CREATE TABLE IF NOT EXISTS usage_records (
	id                 TEXT PRIMARY KEY,
	workspace_id       TEXT NOT NULL,
	provider           TEXT NOT NULL,
	model              TEXT NOT NULL,
	prompt_tokens      INTEGER NOT NULL,
	completion_tokens  INTEGER NOT NULL,
	estimated_cost_usd REAL NOT NULL,
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS debates (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL DEFAULT '',
	topic             TEXT NOT NULL,
	summary           TEXT NOT NULL DEFAULT '',
	rounds            TEXT NOT NULL,
	history           TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	risk_score        INTEGER NOT NULL DEFAULT 0,
	approval_status   TEXT NOT NULL DEFAULT 'pending',
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routing_policies_workspace ON routing_policies(workspace_id);
CREATE INDEX IF NOT EXISTS idx_usage_records_workspace_time ON usage_records(workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_debates_workspace ON debates(workspace_id);
CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, monthly_budget, max_plugin_executions_per_day, created_at, updated_at
		 FROM workspaces WHERE id = ?`, id)

	var ws model.Workspace
	err := row.Scan(&ws.ID, &ws.Name, &ws.MonthlyBudget, &ws.MaxPluginExecutionsPerDay, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get workspace %s", id)
	}
	return &ws, nil
}

func (s *SQLiteStore) UpsertWorkspace(ctx context.Context, ws model.Workspace) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, monthly_budget, max_plugin_executions_per_day, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			monthly_budget = excluded.monthly_budget,
			max_plugin_executions_per_day = excluded.max_plugin_executions_per_day,
			updated_at = excluded.updated_at`,
		ws.ID, ws.Name, ws.MonthlyBudget, ws.MaxPluginExecutionsPerDay, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert workspace %s", ws.ID)
}

func (s *SQLiteStore) GetRoutingPolicy(ctx context.Context, workspaceID string, taskType model.TaskType) (*model.RoutingPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode, updated_at
		 FROM routing_policies WHERE workspace_id = ? AND task_type = ?`,
		workspaceID, string(taskType))

	var p model.RoutingPolicy
	var taskRaw string
	var costMode int
	err := row.Scan(&p.ID, &p.WorkspaceID, &taskRaw, &p.PreferredProvider, &p.PreferredModel, &costMode, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get routing policy %s/%s", workspaceID, taskType)
	}
	p.TaskType = model.TaskType(taskRaw)
	p.CostEfficiencyMode = costMode != 0
	return &p, nil
}

func (s *SQLiteStore) UpsertRoutingPolicy(ctx context.Context, policy model.RoutingPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	costMode := 0
	if policy.CostEfficiencyMode {
		costMode = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routing_policies (id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(workspace_id, task_type) DO UPDATE SET
			preferred_provider = excluded.preferred_provider,
			preferred_model = excluded.preferred_model,
			cost_efficiency_mode = excluded.cost_efficiency_mode,
			updated_at = excluded.updated_at`,
		policy.ID, policy.WorkspaceID, string(policy.TaskType),
		policy.PreferredProvider, policy.PreferredModel, costMode, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert routing policy %s/%s", policy.WorkspaceID, policy.TaskType)
}

func (s *SQLiteStore) ListRoutingPolicies(ctx context.Context, workspaceID string) ([]model.RoutingPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, task_type, preferred_provider, preferred_model, cost_efficiency_mode, updated_at
		 FROM routing_policies WHERE workspace_id = ? ORDER BY task_type`,
		workspaceID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list routing policies %s", workspaceID)
	}
	defer rows.Close()

	var policies []model.RoutingPolicy
	for rows.Next() {
		var p model.RoutingPolicy
		var taskRaw string
		var costMode int
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &taskRaw, &p.PreferredProvider, &p.PreferredModel, &costMode, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan routing policy")
		}
		p.TaskType = model.TaskType(taskRaw)
		p.CostEfficiencyMode = costMode != 0
		policies = append(policies, p)
	}
	return policies, eris.Wrap(rows.Err(), "sqlite: iterate routing policies")
}

func (s *SQLiteStore) AppendUsage(ctx context.Context, rec model.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, workspace_id, provider, model, prompt_tokens, completion_tokens, estimated_cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WorkspaceID, rec.Provider, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.EstimatedCostUSD, rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append usage %s", rec.WorkspaceID)
}

func (s *SQLiteStore) SumUsageSince(ctx context.Context, workspaceID string, since time.Time) (float64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(estimated_cost_usd), 0) FROM usage_records
		 WHERE workspace_id = ? AND created_at >= ?`,
		workspaceID, since)

	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, eris.Wrapf(err, "sqlite: sum usage %s", workspaceID)
	}
	return sum, nil
}

func (s *SQLiteStore) ListUsage(ctx context.Context, workspaceID string, since time.Time, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, provider, model, prompt_tokens, completion_tokens, estimated_cost_usd, created_at
		 FROM usage_records WHERE workspace_id = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT ?`,
		workspaceID, since, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list usage %s", workspaceID)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var r model.UsageRecord
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Provider, &r.Model, &r.PromptTokens, &r.CompletionTokens, &r.EstimatedCostUSD, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate usage records")
}

func (s *SQLiteStore) SaveDebate(ctx context.Context, result *model.DebateResult) error {
	roundsJSON, err := json.Marshal(result.Rounds)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rounds")
	}
	historyJSON, err := json.Marshal(result.History)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal history")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO debates (id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.WorkspaceID, result.Topic, result.Summary,
		string(roundsJSON), string(historyJSON),
		result.TotalUsage.PromptTokens, result.TotalUsage.CompletionTokens, result.TotalUsage.TotalTokens,
		result.RiskScore, string(result.ApprovalStatus), result.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save debate %s", result.ID)
}

func (s *SQLiteStore) GetDebate(ctx context.Context, id string) (*model.DebateResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at
		 FROM debates WHERE id = ?`, id)

	result, err := scanDebate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get debate %s", id)
	}
	return result, nil
}

func (s *SQLiteStore) ListDebates(ctx context.Context, filter DebateFilter) ([]model.DebateResult, error) {
	query := `SELECT id, workspace_id, topic, summary, rounds, history, prompt_tokens, completion_tokens, total_tokens, risk_score, approval_status, created_at
		FROM debates WHERE 1=1`
	var args []any

	if filter.WorkspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, filter.WorkspaceID)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list debates")
	}
	defer rows.Close()

	var debates []model.DebateResult
	for rows.Next() {
		result, err := scanDebate(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan debate")
		}
		debates = append(debates, *result)
	}
	return debates, eris.Wrap(rows.Err(), "sqlite: iterate debates")
}

// scanDebate decodes one debates row via the given scan function.
func scanDebate(scan func(dest ...any) error) (*model.DebateResult, error) {
	var d model.DebateResult
	var roundsJSON, historyJSON, status string
	err := scan(&d.ID, &d.WorkspaceID, &d.Topic, &d.Summary, &roundsJSON, &historyJSON,
		&d.TotalUsage.PromptTokens, &d.TotalUsage.CompletionTokens, &d.TotalUsage.TotalTokens,
		&d.RiskScore, &status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roundsJSON), &d.Rounds); err != nil {
		return nil, eris.Wrap(err, "unmarshal rounds")
	}
	if err := json.Unmarshal([]byte(historyJSON), &d.History); err != nil {
		return nil, eris.Wrap(err, "unmarshal history")
	}
	d.ApprovalStatus = model.ApprovalStatus(status)
	return &d, nil
}
