// Package recorder keeps a SQLite log of game sessions: telemetry coming
// back over the radio and control loop overruns.
package recorder

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-ssl/internal/log"
	"github.com/teslashibe/go-ssl/pkg/clock"
	"github.com/teslashibe/go-ssl/pkg/field"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNoSession is returned when recording outside a session, or ending a
// session that is not the current one.
var ErrNoSession = errors.New("recorder: no active session")

// Session is one game, from StartGame to EndGame.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	EndedAt   time.Time // zero while running
}

// Telemetry is one frame received from a team's radio.
type Telemetry struct {
	Team       field.Team
	ReceivedAt time.Time
	Payload    []byte
}

// Overrun is one missed control loop deadline.
type Overrun struct {
	Loop  string
	Delay time.Duration
	At    time.Time
}

// Recorder writes to a SQLite database. It is safe for concurrent use.
type Recorder struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	session uuid.UUID
	active  bool
}

// Open opens or creates the database at path and brings its schema up to
// date. ":memory:" gives a throwaway database.
func Open(path string, clk clock.Clock) (*Recorder, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder database: %w", err)
	}
	// a single connection keeps ":memory:" one database and serialises writers
	db.SetMaxOpenConns(1)

	r := &Recorder{db: db, clock: clk, logger: log.For("recorder")}
	if err := r.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{r.logger}
	// m.Close would close the shared *sql.DB
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{ l *slog.Logger }

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Debug(fmt.Sprintf("migrate: "+format, v...))
}

func (migrateLogger) Verbose() bool { return false }

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// BeginSession starts recording under id. A session still open is ended
// at startedAt first.
func (r *Recorder) BeginSession(id uuid.UUID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active && r.session != id {
		if err := r.endLocked(startedAt); err != nil {
			return err
		}
	}
	_, err := r.db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`, id.String(), startedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("begin session %s: %w", id, err)
	}
	r.session, r.active = id, true
	r.logger.Info("session started", "session", id)
	return nil
}

// EndSession closes the current session.
func (r *Recorder) EndSession(id uuid.UUID, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.session != id {
		return ErrNoSession
	}
	return r.endLocked(endedAt)
}

func (r *Recorder) endLocked(endedAt time.Time) error {
	_, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		endedAt.UnixNano(), r.session.String())
	if err != nil {
		return fmt.Errorf("end session %s: %w", r.session, err)
	}
	r.logger.Info("session ended", "session", r.session)
	r.active = false
	return nil
}

func (r *Recorder) current() (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session, r.active
}

// RecordTelemetry stores a received radio frame in the current session.
func (r *Recorder) RecordTelemetry(team field.Team, payload []byte) error {
	id, ok := r.current()
	if !ok {
		return ErrNoSession
	}
	_, err := r.db.Exec(`INSERT INTO telemetry (session_id, team, received_at, payload) VALUES (?, ?, ?, ?)`,
		id.String(), team.String(), r.clock.Now().UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("record telemetry: %w", err)
	}
	return nil
}

// RecordOverrun stores a missed deadline in the current session.
func (r *Recorder) RecordOverrun(loop string, delay time.Duration) error {
	id, ok := r.current()
	if !ok {
		return ErrNoSession
	}
	_, err := r.db.Exec(`INSERT INTO overruns (session_id, loop, delay_ns, at) VALUES (?, ?, ?, ?)`,
		id.String(), loop, int64(delay), r.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("record overrun: %w", err)
	}
	return nil
}

// OverrunHook has the shape of a control loop overrun callback. Overruns
// outside a session are dropped.
func (r *Recorder) OverrunHook(loop string, delay time.Duration) {
	if err := r.RecordOverrun(loop, delay); err != nil && !errors.Is(err, ErrNoSession) {
		r.logger.Error("overrun not recorded", "loop", loop, "error", err)
	}
}

// Sessions lists every recorded session, oldest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query(`SELECT id, started_at, ended_at FROM sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			id      string
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&id, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s := Session{StartedAt: time.Unix(0, started)}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse session id %q: %w", id, err)
		}
		if ended.Valid {
			s.EndedAt = time.Unix(0, ended.Int64)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Telemetry returns the frames recorded in session, in arrival order.
func (r *Recorder) Telemetry(session uuid.UUID) ([]Telemetry, error) {
	rows, err := r.db.Query(`SELECT team, received_at, payload FROM telemetry
		WHERE session_id = ? ORDER BY id`, session.String())
	if err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	defer rows.Close()

	var out []Telemetry
	for rows.Next() {
		var (
			team string
			at   int64
			t    Telemetry
		)
		if err := rows.Scan(&team, &at, &t.Payload); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		if t.Team, err = field.ParseTeam(team); err != nil {
			return nil, err
		}
		t.ReceivedAt = time.Unix(0, at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Overruns returns the overruns recorded in session, in order.
func (r *Recorder) Overruns(session uuid.UUID) ([]Overrun, error) {
	rows, err := r.db.Query(`SELECT loop, delay_ns, at FROM overruns
		WHERE session_id = ? ORDER BY id`, session.String())
	if err != nil {
		return nil, fmt.Errorf("query overruns: %w", err)
	}
	defer rows.Close()

	var out []Overrun
	for rows.Next() {
		var (
			o         Overrun
			delay, at int64
		)
		if err := rows.Scan(&o.Loop, &delay, &at); err != nil {
			return nil, fmt.Errorf("scan overrun: %w", err)
		}
		o.Delay = time.Duration(delay)
		o.At = time.Unix(0, at)
		out = append(out, o)
	}
	return out, rows.Err()
}
