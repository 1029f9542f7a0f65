package persistence

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

// CreateError persists a non-fatal TaskError (spec.md §4.2).
func (s *Store) CreateError(ctx context.Context, e model.TaskError) (model.TaskError, error) {
	err := retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO task_errors (id, task_id, created_at, category, message)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID.String(), e.TaskID.String(), e.CreatedAt, e.Category, e.Message)
		return err
	})
	if err != nil {
		return model.TaskError{}, err
	}
	return e, nil
}

// DeleteErrorsForTask removes every TaskError belonging to a task. Used
// by DeleteTask's cascade (spec.md §4.2, §4.5).
func (s *Store) DeleteErrorsForTask(ctx context.Context, taskID uuid.UUID) error {
	return retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM task_errors WHERE task_id = ?`, taskID.String())
		return err
	})
}

func scanTaskError(row interface{ Scan(...any) error }) (model.TaskError, error) {
	var e model.TaskError
	var idStr, taskIDStr string
	if err := row.Scan(&idStr, &taskIDStr, &e.CreatedAt, &e.Category, &e.Message); err != nil {
		return model.TaskError{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.TaskError{}, err
	}
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		return model.TaskError{}, err
	}
	e.ID, e.TaskID = id, taskID
	return e, nil
}

func collectTaskErrors(rows *sql.Rows) ([]model.TaskError, error) {
	var out []model.TaskError
	for rows.Next() {
		e, err := scanTaskError(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
