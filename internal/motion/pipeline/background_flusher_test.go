package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBgStore struct {
	mu    sync.Mutex
	snaps []*l3grid.BgSnapshot
	err   error
}

func (m *memBgStore) InsertBgSnapshot(s *l3grid.BgSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.snaps = append(m.snaps, s)
	return int64(len(m.snaps)), nil
}

func (m *memBgStore) reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.snaps {
		out = append(out, s.SnapshotReason)
	}
	return out
}

func newFlushModel(t *testing.T) *l3grid.Model {
	t.Helper()
	m, err := l3grid.NewModel(l3grid.DefaultBackgroundConfig().WithSize(testSize))
	require.NoError(t, err)
	return m
}

func TestBackgroundFlusher_PeriodicFlush(t *testing.T) {
	var buf bytes.Buffer
	clock := timeutil.NewMockClock(t0)
	store := &memBgStore{}
	f := NewBackgroundFlusher(BackgroundFlusherConfig{
		Model:     newFlushModel(t),
		Store:     store,
		SessionID: "sess-1",
		Interval:  time.Minute,
		Clock:     clock,
		Logger:    log.New(&buf, "", 0),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Run(context.Background())
	}()

	for i := 0; i < 2; i++ {
		waitPending(t, clock)
		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return len(store.reasons()) == i+1 }, 2*time.Second, time.Millisecond)
	}
	f.Stop()
	<-done

	assert.Equal(t, []string{ReasonPeriodic, ReasonPeriodic}, store.reasons())
	assert.Equal(t, "sess-1", store.snaps[0].SessionID)
	assert.Equal(t, t0.Add(time.Minute).UnixNano(), store.snaps[0].TakenUnixNanos)
	assert.False(t, f.IsRunning())
	assert.Contains(t, buf.String(), "periodic flush stored")
}

func TestBackgroundFlusher_DisabledInterval(t *testing.T) {
	var buf bytes.Buffer
	f := NewBackgroundFlusher(BackgroundFlusherConfig{
		Model:  newFlushModel(t),
		Store:  &memBgStore{},
		Logger: log.New(&buf, "", 0),
	})
	require.NoError(t, f.Run(context.Background()))
	assert.Contains(t, buf.String(), "disabled")
	f.Stop()
}

func TestBackgroundFlusher_FlushReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	store := &memBgStore{err: errors.New("database is locked")}
	f := NewBackgroundFlusher(BackgroundFlusherConfig{
		Model:  newFlushModel(t),
		Store:  store,
		Clock:  timeutil.NewMockClock(t0),
		Logger: log.New(&buf, "", 0),
	})

	_, err := f.Flush(ReasonShutdown)
	assert.ErrorContains(t, err, "database is locked")
	assert.Contains(t, buf.String(), "shutdown flush failed")

	store.err = nil
	id, err := f.Flush(ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestBackgroundFlusher_NoStoreIsNoop(t *testing.T) {
	f := NewBackgroundFlusher(BackgroundFlusherConfig{Model: newFlushModel(t), Logger: log.New(&bytes.Buffer{}, "", 0)})
	id, err := f.Flush(ReasonManual)
	assert.NoError(t, err)
	assert.Zero(t, id)
}
