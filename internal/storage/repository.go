// Package storage implements the persistence gateway on database/sql. The SQL
// is shared between SQLite and MySQL; a Dialect covers time encoding and
// driver error classification.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/store"
)

// Dialect adapts the shared SQL to one driver.
type Dialect interface {
	Name() string
	// TimeArg encodes t as a query argument.
	TimeArg(t time.Time) any
	// IsActiveConflict reports a violation of the single running entry constraint.
	IsActiveConflict(err error) bool
	// IsMissingParent reports a foreign key violation on insert.
	IsMissingParent(err error) bool
	// IsDuplicateKey reports any other unique violation, usually the primary key.
	IsDuplicateKey(err error) bool
}

// Repository is a store.Store on a *sql.DB.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Repository)(nil)

// NewRepository wraps an open, migrated database.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// DB exposes the underlying handle for health checks and tooling.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Dialect() string { return r.dialect.Name() }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return r.dialect.TimeArg(*t)
}

// Clients

func (r *Repository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	if c.ID == "" {
		return core.Client{}, core.ErrEmptyID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, r.dialect.TimeArg(c.CreatedAt))
	if err != nil {
		if r.dialect.IsDuplicateKey(err) {
			return core.Client{}, fmt.Errorf("client %s: %w", c.ID, core.ErrDuplicateID)
		}
		return core.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (r *Repository) GetClient(ctx context.Context, id string) (core.Client, error) {
	var c core.Client
	var created nullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, core.ErrClientNotFound
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("get client: %w", err)
	}
	c.CreatedAt = created.Time
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM clients ORDER BY LOWER(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		var c core.Client
		var created nullTime
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.CreatedAt = created.Time
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "clients", id, core.ErrClientNotFound)
}

// Projects

func (r *Repository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	if p.ID == "" {
		return core.Project{}, core.ErrEmptyID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, client_id, name, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.Name, p.IsActive, r.dialect.TimeArg(p.CreatedAt))
	if err != nil {
		switch {
		case r.dialect.IsMissingParent(err):
			return core.Project{}, core.ErrClientNotFound
		case r.dialect.IsDuplicateKey(err):
			return core.Project{}, fmt.Errorf("project %s: %w", p.ID, core.ErrDuplicateID)
		}
		return core.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

const projectColumns = `id, client_id, name, is_active, created_at`

func scanProject(sc interface{ Scan(...any) error }) (core.Project, error) {
	var p core.Project
	var created nullTime
	if err := sc.Scan(&p.ID, &p.ClientID, &p.Name, &p.IsActive, &created); err != nil {
		return core.Project{}, err
	}
	p.CreatedAt = created.Time
	return p, nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, core.ErrProjectNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProjects(ctx context.Context, f store.ProjectFilter) ([]core.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1 = 1`
	var args []any
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.ActiveOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY LOWER(name), id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SetProjectActive(ctx context.Context, id string, active bool) error {
	if _, err := r.GetProject(ctx, id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE projects SET is_active = ? WHERE id = ?`, active, id); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "projects", id, core.ErrProjectNotFound)
}

// Tasks

func (r *Repository) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	if t.ID == "" {
		return core.Task{}, core.ErrEmptyID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, name, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Name, r.dialect.TimeArg(t.CreatedAt))
	if err != nil {
		switch {
		case r.dialect.IsMissingParent(err):
			return core.Task{}, core.ErrProjectNotFound
		case r.dialect.IsDuplicateKey(err):
			return core.Task{}, fmt.Errorf("task %s: %w", t.ID, core.ErrDuplicateID)
		}
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (core.Task, error) {
	var t core.Task
	var created nullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.ProjectID, &t.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, core.ErrTaskNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	t.CreatedAt = created.Time
	return t, nil
}

func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, name, created_at FROM tasks WHERE project_id = ? ORDER BY LOWER(name), id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []core.Task
	for rows.Next() {
		var t core.Task
		var created nullTime
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &created); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = created.Time
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "tasks", id, core.ErrTaskNotFound)
}

// deleteByID relies on ON DELETE CASCADE for descendants, so every delete
// counts as an entry write. table is never user input.
func (r *Repository) deleteByID(ctx context.Context, table, id string, notFound error) error {
	return r.writeTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		if n == 0 {
			return notFound
		}
		return nil
	})
}
