package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
)

// InsertBgSnapshot stores a background model snapshot and returns its id.
func (db *DB) InsertBgSnapshot(s *l3grid.BgSnapshot) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("nil snapshot")
	}
	res, err := db.Exec(`
		INSERT INTO bg_snapshots (session_id, taken_unix_nanos, width, height, frames_seen, params_json, model_blob, snapshot_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.TakenUnixNanos, s.Width, s.Height, s.FramesSeen, s.ParamsJSON, s.ModelBlob, s.SnapshotReason,
	)
	if err != nil {
		return 0, fmt.Errorf("insert bg snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.SnapshotID = &id
	return id, nil
}

const bgSnapshotColumns = `snapshot_id, session_id, taken_unix_nanos, width, height, frames_seen, params_json, model_blob, snapshot_reason`

func scanBgSnapshot(row interface{ Scan(...any) error }) (*l3grid.BgSnapshot, error) {
	var s l3grid.BgSnapshot
	var id int64
	if err := row.Scan(&id, &s.SessionID, &s.TakenUnixNanos, &s.Width, &s.Height,
		&s.FramesSeen, &s.ParamsJSON, &s.ModelBlob, &s.SnapshotReason); err != nil {
		return nil, err
	}
	s.SnapshotID = &id
	return &s, nil
}

// LatestBgSnapshot returns the newest snapshot taken at the given frame size,
// or nil when there is none.
func (db *DB) LatestBgSnapshot(width, height int) (*l3grid.BgSnapshot, error) {
	row := db.QueryRow(`SELECT `+bgSnapshotColumns+` FROM bg_snapshots
		WHERE width = ? AND height = ?
		ORDER BY snapshot_id DESC LIMIT 1`, width, height)
	s, err := scanBgSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest bg snapshot: %w", err)
	}
	return s, nil
}

// ListRecentBgSnapshots returns up to limit snapshots for a session, newest
// first, without their model blobs.
func (db *DB) ListRecentBgSnapshots(sessionID string, limit int) ([]*l3grid.BgSnapshot, error) {
	rows, err := db.Query(`SELECT snapshot_id, session_id, taken_unix_nanos, width, height, frames_seen, params_json, x'', snapshot_reason
		FROM bg_snapshots WHERE session_id = ?
		ORDER BY snapshot_id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bg snapshots: %w", err)
	}
	defer rows.Close()

	var out []*l3grid.BgSnapshot
	for rows.Next() {
		s, err := scanBgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneBgSnapshots keeps the newest keep snapshots and deletes the rest.
func (db *DB) PruneBgSnapshots(keep int) (int64, error) {
	res, err := db.Exec(`DELETE FROM bg_snapshots WHERE snapshot_id NOT IN (
		SELECT snapshot_id FROM bg_snapshots ORDER BY snapshot_id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune bg snapshots: %w", err)
	}
	return res.RowsAffected()
}
