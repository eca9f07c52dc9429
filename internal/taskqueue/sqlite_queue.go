package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteQueue is a persistent request queue backed by SQLite. Requests
// survive a process restart. Dequeue returns due requests in NotBefore
// order, ties broken by enqueue order.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the requests table in the given DB and returns a new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_requests (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			state BLOB,
			enqueued_at INTEGER NOT NULL,
			not_before INTEGER NOT NULL
		);
	`)
	return err
}

var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, r Request) error {
	state, err := encodeState(r.State)
	if err != nil {
		return err
	}

	enqueuedAt := r.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}

	notBefore := enqueuedAt.UnixNano()
	if !r.NotBefore.IsZero() {
		notBefore = r.NotBefore.UnixNano()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO run_requests (id, kind, target, state, enqueued_at, not_before)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID,
		string(r.Kind),
		r.Target,
		state,
		enqueuedAt.UnixNano(),
		notBefore,
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Request, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := q.claim(ctx)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		// Nothing due: sleep a bit and retry.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// claim removes and returns the next due request, or sql.ErrNoRows.
func (q *SQLiteQueue) claim(ctx context.Context) (*Request, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		seq        int64
		id         string
		kind       string
		target     string
		state      []byte
		enqueuedAt int64
		notBefore  int64
	)

	row := tx.QueryRowContext(ctx, `
		SELECT seq, id, kind, target, state, enqueued_at, not_before
		FROM run_requests
		WHERE not_before <= ?
		ORDER BY not_before, seq
		LIMIT 1`, time.Now().UnixNano())
	if err := row.Scan(&seq, &id, &kind, &target, &state, &enqueuedAt, &notBefore); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_requests WHERE seq = ?`, seq); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	decoded, err := decodeState(state)
	if err != nil {
		return nil, err
	}

	return &Request{
		ID:         id,
		Kind:       RequestKind(kind),
		Target:     target,
		State:      decoded,
		EnqueuedAt: time.Unix(0, enqueuedAt),
		NotBefore:  time.Unix(0, notBefore),
	}, nil
}

func (q *SQLiteQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM run_requests`).Scan(&n); err != nil {
		return 0
	}
	return n
}
