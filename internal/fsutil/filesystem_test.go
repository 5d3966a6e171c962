package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func exerciseFileSystem(t *testing.T, fsys FileSystem, root string) {
	t.Helper()
	dir := filepath.Join(root, "snapshots", "2024")
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	b := filepath.Join(dir, "b.jpg")
	a := filepath.Join(dir, "a.jpg")
	if err := fsys.WriteFile(b, []byte("bbb"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fsys.WriteFile(a, []byte("a"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !fsys.Exists(a) {
		t.Error("Exists(a) = false after write")
	}

	got, err := fsys.ReadFile(b)
	if err != nil || string(got) != "bbb" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}

	files, err := fsys.ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.jpg" || filepath.Base(files[1]) != "b.jpg" {
		t.Errorf("ListFiles = %v, want sorted a.jpg, b.jpg", files)
	}

	if err := fsys.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fsys.ReadFile(a); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile after Remove = %v, want ErrNotExist", err)
	}
}

func TestOSFileSystem(t *testing.T) {
	exerciseFileSystem(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	exerciseFileSystem(t, NewMemoryFileSystem(), "/data")
}

func TestMemoryFileSystem_WriteWithoutParent(t *testing.T) {
	m := NewMemoryFileSystem()
	err := m.WriteFile("/missing/x.jpg", []byte("x"), 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("WriteFile without parent = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_FailWrites(t *testing.T) {
	m := NewMemoryFileSystem()
	m.FailWrites = errors.New("disk full")
	if err := m.WriteFile("x.jpg", nil, 0644); err == nil {
		t.Fatal("expected injected failure")
	}
}

func TestOSFileSystem_WriteFileLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snap.jpg")
	if err := (OSFileSystem{}).WriteFile(target, []byte("jpeg"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
