/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/effort-pulse/internal/config"
	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id   text PRIMARY KEY,
    name text NOT NULL DEFAULT '',
    doc  jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
    id   text PRIMARY KEY,
    name text NOT NULL DEFAULT '',
    doc  jsonb NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
    id           text PRIMARY KEY,
    project_id   text,
    assignees    text[] NOT NULL DEFAULT '{}',
    completed    boolean NOT NULL DEFAULT false,
    completed_at timestamptz,
    due_at       timestamptz,
    created_at   timestamptz NOT NULL DEFAULT now(),
    doc          jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_assignees_idx ON tasks USING gin (assignees);
CREATE INDEX IF NOT EXISTS tasks_project_idx ON tasks (project_id);
CREATE TABLE IF NOT EXISTS job_runs (
    id          bigserial PRIMARY KEY,
    kind        text NOT NULL,
    started_at  timestamptz NOT NULL DEFAULT now(),
    finished_at timestamptz,
    success     boolean NOT NULL DEFAULT false,
    error       text,
    report_file text,
    delivered   int NOT NULL DEFAULT 0,
    failed      int NOT NULL DEFAULT 0
);`

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenPostgres(ctx context.Context, cfg config.Config, log zerolog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx2, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{Pool: pool, log: log}, nil
}

// Repository is the relational Backend: documents live in jsonb columns,
// the columns used for filtering are duplicated alongside.
type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) Close(context.Context) error { r.db.Pool.Close(); return nil }

func (r *Repository) TryLock(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&ok)
	return ok, err
}

func (r *Repository) Unlock(ctx context.Context, key string) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock(hashtext($1))", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

func getDoc[T any](ctx context.Context, r *Repository, q, kind, id string) (*T, error) {
	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(kind, id)
		}
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return &out, nil
}

func listDocs[T any](ctx context.Context, r *Repository, q string, args ...any) ([]T, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getDoc[domain.User](ctx, r, `SELECT doc FROM users WHERE id=$1`, "user", id)
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	return listDocs[domain.User](ctx, r, `SELECT doc FROM users ORDER BY name, id`)
}

func (r *Repository) SaveUser(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `INSERT INTO users(id, name, doc) VALUES($1,$2,$3)
        ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, doc=EXCLUDED.doc`, u.ID, u.Name, doc)
	return err
}

func (r *Repository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getDoc[domain.Project](ctx, r, `SELECT doc FROM projects WHERE id=$1`, "project", id)
}

func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return listDocs[domain.Project](ctx, r, `SELECT doc FROM projects ORDER BY name, id`)
}

func (r *Repository) SaveProject(ctx context.Context, p domain.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `INSERT INTO projects(id, name, doc) VALUES($1,$2,$3)
        ON CONFLICT(id) DO UPDATE SET name=EXCLUDED.name, doc=EXCLUDED.doc`, p.ID, p.Name, doc)
	return err
}

func (r *Repository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return getDoc[domain.Task](ctx, r, `SELECT doc FROM tasks WHERE id=$1`, "task", id)
}

func (r *Repository) FindTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AssigneeID != "" {
		add("$%d = ANY(assignees)", f.AssigneeID)
	}
	if f.ProjectID != "" {
		add("project_id = $%d", f.ProjectID)
	}
	if f.Completed != nil {
		add("completed = $%d", *f.Completed)
	}
	if f.CompletedFrom != nil {
		add("completed_at >= $%d", *f.CompletedFrom)
	}
	if f.CompletedTo != nil {
		add("completed_at <= $%d", *f.CompletedTo)
	}
	if f.DueFrom != nil {
		add("due_at >= $%d", *f.DueFrom)
	}
	if f.DueTo != nil {
		add("due_at <= $%d", *f.DueTo)
	}
	q := `SELECT doc FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	return listDocs[domain.Task](ctx, r, q, args...)
}

func (r *Repository) SaveTask(ctx context.Context, t domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	const q = `
        INSERT INTO tasks(id, project_id, assignees, completed, completed_at, due_at, created_at, doc)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT(id) DO UPDATE SET
            project_id=EXCLUDED.project_id,
            assignees=EXCLUDED.assignees,
            completed=EXCLUDED.completed,
            completed_at=EXCLUDED.completed_at,
            due_at=EXCLUDED.due_at,
            doc=EXCLUDED.doc`
	assignees := t.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	_, err = r.db.Pool.Exec(ctx, q, t.ID, t.ProjectID, assignees, t.Completed, t.CompletedAt, t.DueDate, t.CreatedAt, doc)
	return err
}

// Job runs
func (r *Repository) StartJobRun(ctx context.Context, kind string) (string, error) {
	const q = `INSERT INTO job_runs(started_at, kind, success) VALUES(now(), $1, false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, kind).Scan(&id); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) FinishJobRun(ctx context.Context, run domain.JobRun) error {
	id, err := strconv.ParseInt(run.ID, 10, 64)
	if err != nil {
		return domain.Invalid("job run id %q", run.ID)
	}
	const q = `UPDATE job_runs SET finished_at=now(), success=$2, error=$3, report_file=$4, delivered=$5, failed=$6 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, run.Success, run.Error, run.ReportFile, run.Delivered, run.Failed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("job run", run.ID)
	}
	return nil
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	const q = `SELECT id, kind, started_at, finished_at, success, coalesce(error,''),
        coalesce(report_file,''), delivered, failed
        FROM job_runs ORDER BY id DESC LIMIT 1`
	var id int64
	lr := &domain.JobRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&id, &lr.Kind, &lr.StartedAt, &lr.FinishedAt, &lr.Success, &lr.Error, &lr.ReportFile, &lr.Delivered, &lr.Failed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("job run", "last")
		}
		return nil, err
	}
	lr.ID = strconv.FormatInt(id, 10)
	return lr, nil
}
