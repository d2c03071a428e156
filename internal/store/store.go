package store

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/LdDl/linecounter/counter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// schema.sql defines tables for sessions, crossing events and tally snapshots.
//
//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// SessionInfo describes a counting session
type SessionInfo struct {
	ID         uuid.UUID
	Source     string
	Line       counter.Line
	Direction  counter.DirectionConvention
	StartedAt  time.Time
	FinishedAt time.Time
}

// Crossing is a stored crossing event
type Crossing struct {
	ID         int64
	SessionID  uuid.UUID
	TrackID    string
	Direction  string
	FrameIndex int
}

// Store persists crossing events and tallies in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (or creates) database at path and applies schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open database %s", path)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute %q", pragma)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (st *Store) Close() error {
	return st.db.Close()
}

// StartSession inserts session record
func (st *Store) StartSession(ctx context.Context, info SessionInfo) error {
	query := `
		INSERT INTO sessions (session_id, source, line_start_x, line_start_y, line_end_x, line_end_y, direction, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := st.db.ExecContext(ctx, query,
		info.ID.String(), info.Source,
		info.Line.Start.X, info.Line.Start.Y, info.Line.End.X, info.Line.End.Y,
		info.Direction.String(), info.StartedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert session %s", info.ID)
	}
	return nil
}

// FinishSession marks session as finished
func (st *Store) FinishSession(ctx context.Context, sessionID uuid.UUID, finishedAt time.Time) error {
	res, err := st.db.ExecContext(ctx, `UPDATE sessions SET finished_at = ? WHERE session_id = ?`, finishedAt.UnixNano(), sessionID.String())
	if err != nil {
		return errors.Wrapf(err, "failed to finish session %s", sessionID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "can't get affected rows")
	}
	if n == 0 {
		return errors.Errorf("session %s not found", sessionID)
	}
	return nil
}

// Session returns stored session info
func (st *Store) Session(ctx context.Context, sessionID uuid.UUID) (SessionInfo, error) {
	query := `
		SELECT source, line_start_x, line_start_y, line_end_x, line_end_y, direction, started_at, finished_at
		FROM sessions WHERE session_id = ?
	`
	var info SessionInfo
	var direction string
	var startedAt int64
	var finishedAt sql.NullInt64
	err := st.db.QueryRowContext(ctx, query, sessionID.String()).Scan(
		&info.Source,
		&info.Line.Start.X, &info.Line.Start.Y, &info.Line.End.X, &info.Line.End.Y,
		&direction, &startedAt, &finishedAt,
	)
	if err != nil {
		return SessionInfo{}, errors.Wrapf(err, "can't read session %s", sessionID)
	}
	info.ID = sessionID
	info.Direction, err = counter.ParseDirectionConvention(direction)
	if err != nil {
		return SessionInfo{}, err
	}
	info.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		info.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	return info, nil
}

// RecordCrossings stores events of a single frame in one transaction
func (st *Store) RecordCrossings(ctx context.Context, sessionID uuid.UUID, events []counter.CrossingEvent[string]) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't begin transaction")
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO crossings (session_id, track_id, direction, frame_index) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "can't prepare statement")
	}
	defer stmt.Close()
	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, sessionID.String(), event.TrackID, event.Direction.String(), event.FrameIndex); err != nil {
			return errors.Wrapf(err, "failed to insert crossing of track %s", event.TrackID)
		}
	}
	return errors.Wrap(tx.Commit(), "can't commit crossings")
}

// RecordTally stores tally snapshot at frame
func (st *Store) RecordTally(ctx context.Context, sessionID uuid.UUID, frameIndex int, tally counter.Tally) error {
	query := `
		INSERT INTO tallies (session_id, frame_index, in_count, out_count) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, frame_index) DO UPDATE SET in_count = excluded.in_count, out_count = excluded.out_count
	`
	if _, err := st.db.ExecContext(ctx, query, sessionID.String(), frameIndex, tally.In, tally.Out); err != nil {
		return errors.Wrapf(err, "failed to insert tally at frame %d", frameIndex)
	}
	return nil
}

// Crossings returns crossing events of session ordered as they were recorded
func (st *Store) Crossings(ctx context.Context, sessionID uuid.UUID) ([]Crossing, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT id, track_id, direction, frame_index FROM crossings WHERE session_id = ? ORDER BY id`, sessionID.String())
	if err != nil {
		return nil, errors.Wrap(err, "can't query crossings")
	}
	defer rows.Close()
	var crossings []Crossing
	for rows.Next() {
		crossing := Crossing{SessionID: sessionID}
		if err := rows.Scan(&crossing.ID, &crossing.TrackID, &crossing.Direction, &crossing.FrameIndex); err != nil {
			return nil, errors.Wrap(err, "can't scan crossing")
		}
		crossings = append(crossings, crossing)
	}
	return crossings, errors.Wrap(rows.Err(), "can't iterate crossings")
}

// LatestTally returns tally with the greatest frame index for session
func (st *Store) LatestTally(ctx context.Context, sessionID uuid.UUID) (int, counter.Tally, error) {
	var frameIndex int
	var tally counter.Tally
	err := st.db.QueryRowContext(ctx,
		`SELECT frame_index, in_count, out_count FROM tallies WHERE session_id = ? ORDER BY frame_index DESC LIMIT 1`,
		sessionID.String(),
	).Scan(&frameIndex, &tally.In, &tally.Out)
	if err != nil {
		return 0, counter.Tally{}, errors.Wrapf(err, "can't read latest tally of session %s", sessionID)
	}
	return frameIndex, tally, nil
}
