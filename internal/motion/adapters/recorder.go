package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/fsutil"
	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"github.com/banshee-data/motionwatch/internal/security"
	"github.com/samber/lo"
)

// SnapshotLayout names evidence images: motion_YYYYMMDD_HHMMSS.jpg.
// Later images from the same second get a _2, _3, ... suffix.
const SnapshotLayout = "20060102_150405"

// maxSameSecondSnapshots bounds the suffix search for one second.
const maxSameSecondSnapshots = 1000

// EventStore is the part of *db.DB the recorder writes to.
type EventStore interface {
	RecordMotionEvent(ev *db.MotionEvent) (int64, error)
	RecordSnapshot(s *db.Snapshot) (int64, error)
	EndEvent(sessionID string, ended time.Time) (bool, error)
}

// ObjectMirror copies saved snapshots to remote storage.
type ObjectMirror interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// EvidenceRecorder is the pipeline's log sink: motion events go to the
// database, annotated frames to JPEG files under Dir, optionally mirrored.
type EvidenceRecorder struct {
	Store   EventStore
	FS      fsutil.FileSystem
	Dir     string
	Quality int
	// Mirror is optional. Mirror failures are logged, not surfaced: the
	// local copy is the evidence of record.
	Mirror ObjectMirror
	// Location sets the timezone of snapshot file names (default: local).
	Location *time.Location
}

// NewEvidenceRecorder returns a recorder writing JPEGs at quality 90.
func NewEvidenceRecorder(store EventStore, fs fsutil.FileSystem, dir string) *EvidenceRecorder {
	return &EvidenceRecorder{Store: store, FS: fs, Dir: dir, Quality: 90}
}

var (
	_ pipeline.LogSink    = (*EvidenceRecorder)(nil)
	_ pipeline.EventEnder = (*EvidenceRecorder)(nil)
)

// LogEvent appends ev to the motion log.
func (r *EvidenceRecorder) LogEvent(_ context.Context, ev pipeline.MotionEvent) error {
	regions, err := json.Marshal(ev.Regions)
	if err != nil {
		return fmt.Errorf("encode regions: %w", err)
	}
	largest := lo.MaxBy(ev.Regions, func(a, b l4perception.Region) bool { return a.Area > b.Area })
	_, err = r.Store.RecordMotionEvent(&db.MotionEvent{
		SessionID:   ev.SessionID,
		Timestamp:   ev.Timestamp,
		FrameSeq:    ev.FrameSeq,
		RegionCount: len(ev.Regions),
		LargestArea: largest.Area,
		RegionsJSON: string(regions),
	})
	return err
}

// SnapshotPath returns where the snapshot for ts is written.
func (r *EvidenceRecorder) SnapshotPath(ts time.Time) string {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return filepath.Join(r.Dir, fmt.Sprintf("motion_%s.jpg", ts.In(loc).Format(SnapshotLayout)))
}

// freePath returns SnapshotPath(ts), suffixed when an earlier image from the
// same second already holds that name.
func (r *EvidenceRecorder) freePath(ts time.Time) (string, error) {
	path := r.SnapshotPath(ts)
	if !r.FS.Exists(path) {
		return path, nil
	}
	stem := strings.TrimSuffix(path, ".jpg")
	for n := 2; n <= maxSameSecondSnapshots; n++ {
		p := fmt.Sprintf("%s_%d.jpg", stem, n)
		if !r.FS.Exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no free snapshot name for %s", path)
}

// SaveSnapshot writes f as a JPEG and indexes it.
func (r *EvidenceRecorder) SaveSnapshot(ctx context.Context, ev pipeline.MotionEvent, f *l2frames.Frame) error {
	quality := r.Quality
	if quality <= 0 {
		quality = 90
	}
	data, err := l2frames.EncodeJPEG(f, quality)
	if err != nil {
		return err
	}
	if err := r.FS.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	path, err := r.freePath(ev.Timestamp)
	if err != nil {
		return err
	}
	if err := r.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}

	var key string
	if r.Mirror != nil {
		key = security.SanitizeFilename(ev.SessionID) + "/" + filepath.Base(path)
		if err := r.Mirror.Put(ctx, key, data, "image/jpeg"); err != nil {
			monitoring.Logf("[recorder] mirror %s failed: %v", key, err)
			key = ""
		}
	}

	_, err = r.Store.RecordSnapshot(&db.Snapshot{
		SessionID: ev.SessionID,
		Timestamp: ev.Timestamp,
		ImagePath: path,
		ObjectKey: key,
		SizeBytes: len(data),
	})
	return err
}

// EndEvent records when the session's open event ended.
func (r *EvidenceRecorder) EndEvent(_ context.Context, sessionID string, ended time.Time) error {
	if _, err := r.Store.EndEvent(sessionID, ended); err != nil {
		return err
	}
	return nil
}
