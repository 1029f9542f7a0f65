package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

// ErrNotFound is returned when a row lookup by id misses.
var ErrNotFound = errors.New("persistence: not found")

// CreateTask inserts a new task row. CreatedAt/UpdatedAt are stamped by
// the caller (the Reactor) before the row reaches the Gateway.
func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	err := retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (id, name, task_type, task_props, frequency, webhook_url, created_at, updated_at, last_execution, next_execution, exec_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID.String(), t.Name, t.TaskType, t.TaskProps, t.Frequency, t.WebhookURL,
			t.CreatedAt, t.UpdatedAt, nullableTime(t.LastExecution), nullableTime(t.NextExecution), t.ExecCount)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// GetTask returns a single task by id.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, task_type, task_props, frequency, webhook_url, created_at, updated_at, last_execution, next_execution, exec_count
		FROM tasks WHERE id = ?
	`, id.String())
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	return t, err
}

// GetTasks returns up to PageSize tasks ordered by created_at descending,
// starting at offset (spec.md §4.2).
func (s *Store) GetTasks(ctx context.Context, offset int64) ([]model.Task, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, task_type, task_props, frequency, webhook_url, created_at, updated_at, last_execution, next_execution, exec_count
		FROM tasks ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, PageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// GetScheduledTasks returns every task whose next_execution is at or
// before `when`, in unspecified order (spec.md §4.2).
func (s *Store) GetScheduledTasks(ctx context.Context, when time.Time) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, task_type, task_props, frequency, webhook_url, created_at, updated_at, last_execution, next_execution, exec_count
		FROM tasks WHERE next_execution IS NOT NULL AND next_execution <= ?
	`, when)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// UpdateTask overwrites a task's mutable fields (name/type/props/frequency/
// webhook) from an API update, bumping updated_at.
func (s *Store) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = time.Now().UTC()
	err := retryOnBusy(ctx, 5, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE tasks SET name = ?, task_type = ?, task_props = ?, frequency = ?, webhook_url = ?, updated_at = ?
			WHERE id = ?
		`, t.Name, t.TaskType, t.TaskProps, t.Frequency, t.WebhookURL, t.UpdatedAt, t.ID.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

// UpdateNextExecution advances a task's scheduling state after a firing
// (spec.md §4.1 step 3): exec_count += 1, last_execution = now,
// next_execution = the supplied value (nil if not schedulable).
func (s *Store) UpdateNextExecution(ctx context.Context, id uuid.UUID, now time.Time, next *time.Time) (model.Task, error) {
	err := retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE tasks SET last_execution = ?, next_execution = ?, exec_count = exec_count + 1, updated_at = ?
			WHERE id = ?
		`, now, nullableTime(&now), nullableTime(next), now, id.String())
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask is the compound delete of spec.md §4.2: it removes a
// task's errors and execution reports before the task row itself.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	type result struct{ err error }
	errsCh := make(chan result, 1)
	reportsCh := make(chan result, 1)

	go func() { errsCh <- result{s.DeleteErrorsForTask(ctx, id)} }()
	go func() { reportsCh <- result{s.DeleteExecutionReportsForTask(ctx, id)} }()

	errsRes, reportsRes := <-errsCh, <-reportsCh
	if errsRes.err != nil {
		return errsRes.err
	}
	if reportsRes.err != nil {
		return reportsRes.err
	}

	return retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
		return err
	})
}

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var t model.Task
	var idStr string
	var lastExec, nextExec sql.NullTime
	if err := row.Scan(&idStr, &t.Name, &t.TaskType, &t.TaskProps, &t.Frequency, &t.WebhookURL,
		&t.CreatedAt, &t.UpdatedAt, &lastExec, &nextExec, &t.ExecCount); err != nil {
		return model.Task{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.Task{}, err
	}
	t.ID = id
	if lastExec.Valid {
		v := lastExec.Time
		t.LastExecution = &v
	}
	if nextExec.Valid {
		v := nextExec.Time
		t.NextExecution = &v
	}
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
