package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// SQLiteRunStore is a RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRunStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore initializes the required schema in the given
// database and returns a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) (*SQLiteRunStore, error) {
	s := &SQLiteRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRunStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			steps INTEGER NOT NULL,
			pending_jump TEXT,
			input BLOB,
			state BLOB,
			history BLOB,
			error TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_name_status ON runs (name, status);`)
	return err
}

func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *api.Run) error {
	input, err := EncodeValue(run.Input)
	if err != nil {
		return err
	}

	state, err := EncodeValue(run.State)
	if err != nil {
		return err
	}

	history, err := EncodeValue(run.History)
	if err != nil {
		return err
	}

	errStr := ""
	if run.Err != nil {
		errStr = run.Err.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, kind, status, steps, pending_jump, input, state, history, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			status = excluded.status,
			steps = excluded.steps,
			pending_jump = excluded.pending_jump,
			input = excluded.input,
			state = excluded.state,
			history = excluded.history,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		run.ID,
		run.Name,
		string(run.Kind),
		string(run.Status),
		run.Steps,
		run.PendingJump,
		input,
		state,
		history,
		errStr,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
	)
	return err
}

const selectRuns = `
	SELECT id, name, kind, status, steps, pending_jump, input, state, history, error, started_at, finished_at
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*api.Run, error) {
	var (
		run                   api.Run
		kind, status          string
		pending, errStr       sql.NullString
		input, state, history []byte
		startedAt, finishedAt int64
	)

	if err := row.Scan(&run.ID, &run.Name, &kind, &status, &run.Steps, &pending,
		&input, &state, &history, &errStr, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Kind = api.RunKind(kind)
	run.Status = api.Status(status)
	run.PendingJump = pending.String
	run.StartedAt = time.Unix(0, startedAt)
	run.FinishedAt = time.Unix(0, finishedAt)

	var err error
	if run.Input, err = DecodeValue[api.State](input); err != nil {
		return nil, err
	}
	if run.State, err = DecodeValue[api.State](state); err != nil {
		return nil, err
	}
	if run.History, err = DecodeValue[[]api.StepRecord](history); err != nil {
		return nil, err
	}

	if errStr.Valid && errStr.String != "" {
		run.Err = errors.New(errStr.String)
	}

	return &run, nil
}

func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.Run, error) {
	query := selectRuns
	var args []any
	var clauses []string

	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*api.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
