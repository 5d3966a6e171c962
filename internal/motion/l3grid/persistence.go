package l3grid

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"
)

// BgSnapshot matches the bg_snapshots table.
type BgSnapshot struct {
	SnapshotID     *int64 // set by the database after insert
	SessionID      string
	TakenUnixNanos int64
	Width          int
	Height         int
	FramesSeen     int
	ParamsJSON     string
	ModelBlob      []byte // gob+gzip encoded modelState
	SnapshotReason string // 'shutdown', 'manual', 'periodic'
}

// BgStore persists BgSnapshot records. Implemented by db.DB.
type BgStore interface {
	InsertBgSnapshot(s *BgSnapshot) (int64, error)
}

type modelState struct {
	Mixtures int
	Frames   int
	Weights  []float32
	Vars     []float32
	Means    []float32
	Modes    []uint8
}

func encodeState(st *modelState) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(st); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(blob []byte) (*modelState, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty model blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	var st modelState
	if err := gob.NewDecoder(gz).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode model state: %w", err)
	}
	return &st, nil
}

// Snapshot copies the learned statistics into a BgSnapshot.
func (m *Model) Snapshot(sessionID, reason string, now time.Time) (*BgSnapshot, error) {
	m.mu.Lock()
	st := &modelState{
		Mixtures: m.cfg.Mixtures,
		Frames:   m.frames,
		Weights:  append([]float32(nil), m.weights...),
		Vars:     append([]float32(nil), m.vars...),
		Means:    append([]float32(nil), m.means...),
		Modes:    append([]uint8(nil), m.modes...),
	}
	cfg := m.cfg
	m.mu.Unlock()

	blob, err := encodeState(st)
	if err != nil {
		return nil, fmt.Errorf("encode model state: %w", err)
	}
	params, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode model params: %w", err)
	}
	return &BgSnapshot{
		SessionID:      sessionID,
		TakenUnixNanos: now.UnixNano(),
		Width:          cfg.Size.Width,
		Height:         cfg.Size.Height,
		FramesSeen:     st.Frames,
		ParamsJSON:     string(params),
		ModelBlob:      blob,
		SnapshotReason: reason,
	}, nil
}

// Restore replaces the learned statistics with those in snap. The snapshot
// must have been taken from a model with the same size and mixture count.
func (m *Model) Restore(snap *BgSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snap.Width != m.cfg.Size.Width || snap.Height != m.cfg.Size.Height {
		return fmt.Errorf("%w: snapshot %dx%d, model %v", ErrDimensionMismatch, snap.Width, snap.Height, m.cfg.Size)
	}
	st, err := decodeState(snap.ModelBlob)
	if err != nil {
		return err
	}
	n := m.cfg.Size.Pixels()
	k := m.cfg.Mixtures
	if st.Mixtures != k || len(st.Weights) != n*k || len(st.Vars) != n*k || len(st.Means) != n*k*3 || len(st.Modes) != n {
		return fmt.Errorf("snapshot layout does not match model (mixtures %d, want %d)", st.Mixtures, k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = st.Frames
	m.weights = st.Weights
	m.vars = st.Vars
	m.means = st.Means
	m.modes = st.Modes
	return nil
}

// Persist writes a snapshot of the model through store.
func (m *Model) Persist(store BgStore, sessionID, reason string, now time.Time) (int64, error) {
	if store == nil {
		return 0, nil
	}
	snap, err := m.Snapshot(sessionID, reason, now)
	if err != nil {
		return 0, err
	}
	id, err := store.InsertBgSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("insert background snapshot: %w", err)
	}
	return id, nil
}
