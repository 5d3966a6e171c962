package l1capture

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/banshee-data/motionwatch/internal/fsutil"
	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/timeutil"
	"github.com/disintegration/imaging"
)

var replayExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirectorySource replays still images from a directory in file-name order.
// Unreadable files are reported as ErrUnavailable and skipped.
type DirectorySource struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
	files []string
	loop  bool

	mu   sync.Mutex
	next int
	seq  uint64
}

// OpenDirectory lists the replayable images under dir. With loop set the
// replay restarts from the first file instead of ending.
func OpenDirectory(fsys fsutil.FileSystem, clock timeutil.Clock, dir string, loop bool) (*DirectorySource, error) {
	all, err := fsys.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list replay dir %s: %w", dir, err)
	}
	var files []string
	for _, f := range all {
		if replayExtensions[strings.ToLower(filepath.Ext(f))] {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in replay dir %s", dir)
	}
	return &DirectorySource{fs: fsys, clock: clock, files: files, loop: loop}, nil
}

// Len returns the number of images in the replay.
func (d *DirectorySource) Len() int { return len(d.files) }

func (d *DirectorySource) NextFrame(ctx context.Context) (*l2frames.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.files) {
		if !d.loop {
			return nil, ErrEndOfStream
		}
		d.next = 0
	}
	name := d.files[d.next]
	d.next++

	data, err := d.fs.ReadFile(name)
	if err != nil {
		monitoring.Logf("[replay] read %s: %v", name, err)
		return nil, ErrUnavailable
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		monitoring.Logf("[replay] decode %s: %v", name, err)
		return nil, ErrUnavailable
	}
	d.seq++
	return l2frames.NewFrame(d.seq, d.clock.Now(), img), nil
}

func (d *DirectorySource) Close() error { return nil }
