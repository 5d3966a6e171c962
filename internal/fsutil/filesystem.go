// Package fsutil abstracts the file operations used for evidence and replay
// so they can be exercised against memory in tests.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSystem is the subset of file operations the detector performs.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces name with data. Implementations must not leave a
	// partially written file behind on failure.
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
	Exists(name string) bool
	// ListFiles returns the regular files directly under dir, sorted by name.
	ListFiles(dir string) ([]string, error)
}

// OSFileSystem implements FileSystem using the real file system.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// WriteFile writes to a temporary sibling and renames it into place.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Remove(name string) error                     { return os.Remove(name) }

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (OSFileSystem) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemoryFileSystem is an in-memory FileSystem for tests. WriteFile fails
// when the parent directory was never created, like the real thing.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// FailWrites makes every WriteFile return this error when non-nil.
	FailWrites error
}

// NewMemoryFileSystem returns an empty file system containing only ".".
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true, "/": true},
	}
}

func clean(name string) string { return path.Clean(filepath.ToSlash(name)) }

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return &fs.PathError{Op: "write", Path: name, Err: m.FailWrites}
	}
	n := clean(name)
	if !m.dirs[path.Dir(n)] {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[n] = buf
	return nil
}

func (m *MemoryFileSystem) MkdirAll(p string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for d := clean(p); ; d = path.Dir(d) {
		if _, isFile := m.files[d]; isFile {
			return fmt.Errorf("mkdir %s: not a directory", d)
		}
		m.dirs[d] = true
		if d == "." || d == "/" {
			return nil
		}
	}
}

func (m *MemoryFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := clean(name)
	if _, ok := m.files[n]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, n)
	return nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := clean(name)
	_, ok := m.files[n]
	return ok || m.dirs[n]
}

func (m *MemoryFileSystem) ListFiles(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := clean(dir)
	if !m.dirs[d] {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrNotExist}
	}
	var out []string
	for name := range m.files {
		if path.Dir(name) == d && !strings.HasPrefix(path.Base(name), ".") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
