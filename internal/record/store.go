// Package record captures driver-control sessions and keeps them in SQLite
// so they can be replayed as autonomous routines.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/fit"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

var ErrSessionNotFound = errors.New("record: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	started TIMESTAMP NOT NULL,
	duration DOUBLE NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS samples (
	session_id INTEGER NOT NULL,
	t DOUBLE NOT NULL,
	x DOUBLE NOT NULL,
	y DOUBLE NOT NULL,
	heading DOUBLE NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS samples_session ON samples(session_id, t);
CREATE TABLE IF NOT EXISTS actions (
	session_id INTEGER NOT NULL,
	t DOUBLE NOT NULL,
	kind TEXT NOT NULL,
	mechanism TEXT NOT NULL DEFAULT '',
	power DOUBLE NOT NULL DEFAULT 0,
	x DOUBLE NOT NULL DEFAULT 0,
	y DOUBLE NOT NULL DEFAULT 0,
	heading DOUBLE NOT NULL DEFAULT 0,
	FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
`

// Session is one recorded driver-control run.
type Session struct {
	ID       int64
	Name     string
	Started  time.Time
	Duration time.Duration
	Samples  []fit.Sample
	Events   []fit.Event
}

// SessionInfo is a session without its data.
type SessionInfo struct {
	ID       int64
	Name     string
	Started  time.Time
	Duration time.Duration
	Samples  int
	Actions  int
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

// NewStore wraps an open database and creates the tables if needed.
func NewStore(db *sql.DB) (*Store, error) {
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, multierr.Append(fmt.Errorf("record: %s: %w", pragma, err), db.Close())
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("record: schema: %w", err), db.Close())
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes a session and its data in one transaction and returns its
// ID.
func (s *Store) Save(ctx context.Context, sess *Session) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (name, started, duration) VALUES (?, ?, ?)`,
		sess.Name, sess.Started.UTC(), sess.Duration.Seconds())
	if err != nil {
		return 0, fmt.Errorf("record: insert session: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	sampleStmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (session_id, t, x, y, heading) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer sampleStmt.Close()
	for _, smp := range sess.Samples {
		if _, err = sampleStmt.ExecContext(ctx, id, smp.T, smp.Pose.X, smp.Pose.Y, smp.Pose.Heading); err != nil {
			return 0, fmt.Errorf("record: insert sample: %w", err)
		}
	}

	actionStmt, err := tx.PrepareContext(ctx, `INSERT INTO actions (session_id, t, kind, mechanism, power, x, y, heading) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer actionStmt.Close()
	for _, e := range sess.Events {
		a := e.Action
		if _, err = actionStmt.ExecContext(ctx, id, e.T, a.Kind.String(), a.Mechanism, a.Power, a.Pose.X, a.Pose.Y, a.Pose.Heading); err != nil {
			return 0, fmt.Errorf("record: insert action: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	sess.ID = id
	return id, nil
}

// Sessions lists stored sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.name, s.started, s.duration,
			(SELECT COUNT(*) FROM samples WHERE session_id = s.session_id),
			(SELECT COUNT(*) FROM actions WHERE session_id = s.session_id)
		FROM sessions s ORDER BY s.started DESC, s.session_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var secs float64
		if err := rows.Scan(&info.ID, &info.Name, &info.Started, &secs, &info.Samples, &info.Actions); err != nil {
			return nil, err
		}
		info.Duration = seconds(secs)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) Load(ctx context.Context, id int64) (*Session, error) {
	sess := &Session{ID: id}
	var secs float64
	err := s.db.QueryRowContext(ctx, `SELECT name, started, duration FROM sessions WHERE session_id = ?`, id).
		Scan(&sess.Name, &sess.Started, &secs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	sess.Duration = seconds(secs)

	rows, err := s.db.QueryContext(ctx, `SELECT t, x, y, heading FROM samples WHERE session_id = ? ORDER BY t`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var smp fit.Sample
		if err := rows.Scan(&smp.T, &smp.Pose.X, &smp.Pose.Y, &smp.Pose.Heading); err != nil {
			rows.Close()
			return nil, err
		}
		sess.Samples = append(sess.Samples, smp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT t, kind, mechanism, power, x, y, heading FROM actions WHERE session_id = ? ORDER BY t, rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e fit.Event
		var kind string
		a := &e.Action
		if err := rows.Scan(&e.T, &kind, &a.Mechanism, &a.Power, &a.Pose.X, &a.Pose.Y, &a.Pose.Heading); err != nil {
			return nil, err
		}
		if a.Kind, err = path.ParseActionKind(kind); err != nil {
			return nil, fmt.Errorf("session %d: %w", id, err)
		}
		sess.Events = append(sess.Events, e)
	}
	return sess, rows.Err()
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return nil
}
