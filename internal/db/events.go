package db

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// MotionEvent is one row of the append-only motion log.
type MotionEvent struct {
	EventID     int64      `json:"event_id"`
	SessionID   string     `json:"session_id"`
	Timestamp   time.Time  `json:"timestamp"`
	Ended       *time.Time `json:"ended,omitempty"`
	FrameSeq    uint64     `json:"frame_seq"`
	RegionCount int        `json:"region_count"`
	LargestArea int        `json:"largest_area"`
	RegionsJSON string     `json:"-"`
	ImagePath   string     `json:"image_path,omitempty"`
}

// Snapshot indexes one saved evidence image.
type Snapshot struct {
	SnapshotID int64
	SessionID  string
	Timestamp  time.Time
	ImagePath  string
	ObjectKey  string
	SizeBytes  int
}

// RecordMotionEvent appends ev to the motion log and returns its id.
func (db *DB) RecordMotionEvent(ev *MotionEvent) (int64, error) {
	regions := ev.RegionsJSON
	if regions == "" {
		regions = "[]"
	}
	res, err := db.Exec(`
		INSERT INTO motion_events (session_id, ts_unix_nanos, frame_seq, region_count, largest_area, regions_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.Timestamp.UnixNano(), int64(ev.FrameSeq), ev.RegionCount, ev.LargestArea, regions,
	)
	if err != nil {
		return 0, fmt.Errorf("insert motion event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("motion event id: %w", err)
	}
	ev.EventID = id
	return id, nil
}

// EndEvent stamps the end time on the session's newest open event. It
// reports whether an open event existed.
func (db *DB) EndEvent(sessionID string, ended time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE motion_events SET ended_unix_nanos = ?
		WHERE event_id = (
			SELECT MAX(event_id) FROM motion_events
			WHERE session_id = ? AND ended_unix_nanos IS NULL
		)`, ended.UnixNano(), sessionID)
	if err != nil {
		return false, fmt.Errorf("end motion event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordSnapshot indexes a saved image. It is linked to the session's event
// logged at the same timestamp, when there is one.
func (db *DB) RecordSnapshot(s *Snapshot) (int64, error) {
	ts := s.Timestamp.UnixNano()
	var objectKey sql.NullString
	if s.ObjectKey != "" {
		objectKey = sql.NullString{String: s.ObjectKey, Valid: true}
	}
	res, err := db.Exec(`
		INSERT INTO snapshots (event_id, session_id, ts_unix_nanos, image_path, object_key, size_bytes)
		VALUES (
			(SELECT MAX(event_id) FROM motion_events WHERE session_id = ? AND ts_unix_nanos = ?),
			?, ?, ?, ?, ?
		)`,
		s.SessionID, ts, s.SessionID, ts, s.ImagePath, objectKey, s.SizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.SnapshotID = id
	return id, nil
}

// ListEvents returns up to limit events, newest first, with the path of the
// event's snapshot when one was saved.
func (db *DB) ListEvents(limit int) ([]MotionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT e.event_id, e.session_id, e.ts_unix_nanos, e.ended_unix_nanos, e.frame_seq,
		       e.region_count, e.largest_area, e.regions_json,
		       COALESCE((SELECT s.image_path FROM snapshots s WHERE s.event_id = e.event_id
		                 ORDER BY s.snapshot_id DESC LIMIT 1), '')
		FROM motion_events e
		ORDER BY e.event_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list motion events: %w", err)
	}
	defer rows.Close()

	var out []MotionEvent
	for rows.Next() {
		var (
			ev       MotionEvent
			ts       int64
			ended    sql.NullInt64
			frameSeq int64
		)
		if err := rows.Scan(&ev.EventID, &ev.SessionID, &ts, &ended, &frameSeq,
			&ev.RegionCount, &ev.LargestArea, &ev.RegionsJSON, &ev.ImagePath); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.FrameSeq = uint64(frameSeq)
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			ev.Ended = &t
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountEvents returns the number of logged events.
func (db *DB) CountEvents() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM motion_events`).Scan(&n)
	return n, err
}

// CSVTimeLayout formats timestamps in the snapshot CSV export.
const CSVTimeLayout = "20060102_150405"

// WriteCSV writes the snapshot log, oldest first, with a
// Timestamp,Image_Path header. Timestamps are rendered in loc.
func (db *DB) WriteCSV(w io.Writer, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	rows, err := db.Query(`SELECT ts_unix_nanos, image_path FROM snapshots ORDER BY snapshot_id`)
	if err != nil {
		return fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Image_Path"}); err != nil {
		return err
	}
	for rows.Next() {
		var ts int64
		var path string
		if err := rows.Scan(&ts, &path); err != nil {
			return err
		}
		if err := cw.Write([]string{time.Unix(0, ts).In(loc).Format(CSVTimeLayout), path}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
