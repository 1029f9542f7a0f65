package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

// CreateExecutionReport stores the report's output as a newline-joined
// string (spec.md §4.2 round-trip law).
func (s *Store) CreateExecutionReport(ctx context.Context, r model.ExecutionReport) (model.ExecutionReport, error) {
	err := retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO execution_reports (id, task_id, created_at, success, output)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID.String(), r.TaskID.String(), r.CreatedAt, r.Success, r.OutputAsString())
		return err
	})
	if err != nil {
		return model.ExecutionReport{}, err
	}
	return r, nil
}

// GetExecutionReport returns a single report by id.
func (s *Store) GetExecutionReport(ctx context.Context, id uuid.UUID) (model.ExecutionReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, created_at, success, output FROM execution_reports WHERE id = ?
	`, id.String())
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExecutionReport{}, ErrNotFound
	}
	return r, err
}

// GetExecutionReports lists reports across all tasks, paginated and
// ordered by created_at descending.
func (s *Store) GetExecutionReports(ctx context.Context, offset int64) ([]model.ExecutionReport, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, created_at, success, output FROM execution_reports
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, PageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// GetExecutionReportsForTask lists a single task's reports, paginated
// and ordered by created_at descending.
func (s *Store) GetExecutionReportsForTask(ctx context.Context, taskID uuid.UUID, offset int64) ([]model.ExecutionReport, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, created_at, success, output FROM execution_reports
		WHERE task_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, taskID.String(), PageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

// DeleteExecutionReportsForTask removes every report belonging to a
// task. Used by DeleteTask's cascade (spec.md §4.2, §4.5).
func (s *Store) DeleteExecutionReportsForTask(ctx context.Context, taskID uuid.UUID) error {
	return retryOnBusy(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM execution_reports WHERE task_id = ?`, taskID.String())
		return err
	})
}

func scanReport(row interface{ Scan(...any) error }) (model.ExecutionReport, error) {
	var r model.ExecutionReport
	var idStr, taskIDStr, output string
	if err := row.Scan(&idStr, &taskIDStr, &r.CreatedAt, &r.Success, &output); err != nil {
		return model.ExecutionReport{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.ExecutionReport{}, err
	}
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		return model.ExecutionReport{}, err
	}
	r.ID, r.TaskID = id, taskID
	r.Output = model.NewReportOutputFromString(output)
	return r, nil
}

func collectReports(rows *sql.Rows) ([]model.ExecutionReport, error) {
	var out []model.ExecutionReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
