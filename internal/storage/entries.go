package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"timetracker/internal/core"
	"timetracker/internal/store"
)

const entryColumns = `id, task_id, start_time, end_time, notes, created_at`

func scanEntry(sc interface{ Scan(...any) error }) (core.TimeEntry, error) {
	var (
		e              core.TimeEntry
		start, created nullTime
		end            nullTime
		notes          sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.TaskID, &start, &end, &notes, &created); err != nil {
		return core.TimeEntry{}, err
	}
	e.Start = start.Time
	e.End = end.Ptr()
	if notes.Valid {
		e.Notes = &notes.String
	}
	e.CreatedAt = created.Time
	return e, nil
}

func (r *Repository) InsertEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error) {
	if err := e.Validate(); err != nil {
		return core.TimeEntry{}, err
	}
	if e.ID == "" {
		return core.TimeEntry{}, core.ErrEmptyID
	}
	err := r.writeTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO time_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.TaskID, r.dialect.TimeArg(e.Start), r.timeArg(e.End), e.Notes, r.dialect.TimeArg(e.CreatedAt))
		return err
	})
	if err != nil {
		switch {
		case r.dialect.IsActiveConflict(err):
			return core.TimeEntry{}, core.ErrActiveEntryExists
		case r.dialect.IsMissingParent(err):
			return core.TimeEntry{}, core.ErrTaskNotFound
		case r.dialect.IsDuplicateKey(err):
			return core.TimeEntry{}, fmt.Errorf("time entry %s: %w", e.ID, core.ErrDuplicateID)
		}
		return core.TimeEntry{}, fmt.Errorf("insert time entry: %w", err)
	}
	return e, nil
}

func (r *Repository) GetEntry(ctx context.Context, id string) (core.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("get time entry: %w", err)
	}
	return e, nil
}

func (r *Repository) ActiveEntry(ctx context.Context) (*core.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active entry: %w", err)
	}
	return &e, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, e core.TimeEntry) error {
	if _, err := r.GetEntry(ctx, e.ID); err != nil {
		return err
	}
	err := r.writeTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE time_entries SET start_time = ?, end_time = ?, notes = ? WHERE id = ?`,
			r.dialect.TimeArg(e.Start), r.timeArg(e.End), e.Notes, e.ID)
		return err
	})
	if err != nil {
		if r.dialect.IsActiveConflict(err) {
			return core.ErrActiveEntryExists
		}
		return fmt.Errorf("update time entry: %w", err)
	}
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "time_entries", id, core.ErrEntryNotFound)
}

// EntryRevision reads the entry count and the write counter in one round trip.
func (r *Repository) EntryRevision(ctx context.Context) (store.Revision, error) {
	var rev store.Revision
	err := r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM time_entries),
		COALESCE((SELECT revision FROM entry_revision WHERE id = 1), 0)`).
		Scan(&rev.Entries, &rev.Writes)
	if err != nil {
		return store.Revision{}, fmt.Errorf("read entry revision: %w", err)
	}
	return rev, nil
}

// writeTx runs fn and bumps the entry revision in the same transaction.
func (r *Repository) writeTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE entry_revision SET revision = revision + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump entry revision: %w", err)
	}
	return tx.Commit()
}

const detailSelect = `SELECT
	e.id, e.task_id, e.start_time, e.end_time, e.notes, e.created_at,
	t.id, t.project_id, t.name, t.created_at,
	p.id, p.client_id, p.name, p.is_active, p.created_at,
	c.id, c.name, c.created_at
FROM time_entries e
LEFT JOIN tasks t ON t.id = e.task_id
LEFT JOIN projects p ON p.id = t.project_id
LEFT JOIN clients c ON c.id = p.client_id`

func scanDetail(sc interface{ Scan(...any) error }) (core.EntryDetail, error) {
	var (
		e                                       core.TimeEntry
		start, end, created                     nullTime
		notes                                   sql.NullString
		taskID, taskProject, taskName           sql.NullString
		projID, projClient, projName            sql.NullString
		projActive                              sql.NullBool
		clientID, clientName                    sql.NullString
		taskCreated, projCreated, clientCreated nullTime
	)
	err := sc.Scan(
		&e.ID, &e.TaskID, &start, &end, &notes, &created,
		&taskID, &taskProject, &taskName, &taskCreated,
		&projID, &projClient, &projName, &projActive, &projCreated,
		&clientID, &clientName, &clientCreated,
	)
	if err != nil {
		return core.EntryDetail{}, err
	}
	e.Start = start.Time
	e.End = end.Ptr()
	if notes.Valid {
		e.Notes = &notes.String
	}
	e.CreatedAt = created.Time

	d := core.EntryDetail{Entry: e}
	if taskID.Valid {
		d.Task = &core.Task{ID: taskID.String, ProjectID: taskProject.String, Name: taskName.String, CreatedAt: taskCreated.Time}
	}
	if projID.Valid {
		d.Project = &core.Project{ID: projID.String, ClientID: projClient.String, Name: projName.String, IsActive: projActive.Bool, CreatedAt: projCreated.Time}
	}
	if clientID.Valid {
		d.Client = &core.Client{ID: clientID.String, Name: clientName.String, CreatedAt: clientCreated.Time}
	}
	return d, nil
}

func (r *Repository) ListEntryDetails(ctx context.Context, f store.EntryFilter) ([]core.EntryDetail, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, `e.start_time >= ?`)
		args = append(args, r.dialect.TimeArg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, `e.start_time <= ?`)
		args = append(args, r.dialect.TimeArg(f.To))
	}
	if f.CompletedOnly {
		where = append(where, `e.end_time IS NOT NULL`)
	}
	query := detailSelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	if f.Newest {
		query += "\nORDER BY e.start_time DESC, e.id"
	} else {
		query += "\nORDER BY e.start_time ASC, e.id"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var out []core.EntryDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) GetEntryDetail(ctx context.Context, id string) (core.EntryDetail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, detailSelect+"\nWHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.EntryDetail{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.EntryDetail{}, fmt.Errorf("get time entry: %w", err)
	}
	return d, nil
}
