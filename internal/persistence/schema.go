package persistence

const schemaVersion = 1

// schemaDDL creates the three durable relations named in spec.md §6:
// tasks, errors and reports. Implementations MAY choose any engine
// satisfying the operation semantics of §4.2; this one is SQLite via
// database/sql + mattn/go-sqlite3.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		task_type TEXT NOT NULL,
		task_props TEXT NOT NULL,
		frequency TEXT NOT NULL,
		webhook_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_execution DATETIME,
		next_execution DATETIME,
		exec_count INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_next_execution ON tasks(next_execution);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);`,
	`CREATE TABLE IF NOT EXISTS task_errors (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id),
		created_at DATETIME NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_task_errors_task_id ON task_errors(task_id);`,
	`CREATE TABLE IF NOT EXISTS execution_reports (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id),
		created_at DATETIME NOT NULL,
		success INTEGER NOT NULL,
		output TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE INDEX IF NOT EXISTS idx_execution_reports_task_id ON execution_reports(task_id);`,
	`CREATE INDEX IF NOT EXISTS idx_execution_reports_created_at ON execution_reports(created_at);`,
}

// PageSize is the fixed pagination page size (spec.md §4.2).
const PageSize = 100
