package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("content = %q, want %q", got, `{"a":2}`)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp files must not linger)", len(entries))
	}
}

func TestWriteFileAtomic_RenameFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path makes the rename fail.
	target := filepath.Join(dir, "target")
	if err := os.MkdirAll(filepath.Join(target, "child"), 0o750); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(target, []byte("x"), 0o600); err == nil {
		t.Fatal("WriteFileAtomic() should fail when the target is a non-empty directory")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file should be removed)", len(entries))
	}
}

type failingFile struct {
	*os.File
	writeErr, syncErr error
	synced            bool
}

func (f *failingFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.File.Write(p)
}

func (f *failingFile) Sync() error {
	f.synced = true
	if f.syncErr != nil {
		return f.syncErr
	}
	return f.File.Sync()
}

func stubOpenTemp(t *testing.T, ff *failingFile) {
	t.Helper()
	orig := openTemp
	openTemp = func(name string, perm os.FileMode) (tempFile, error) {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
		if err != nil {
			return nil, err
		}
		ff.File = f
		return ff, nil
	}
	t.Cleanup(func() { openTemp = orig })
}

func TestWriteFileAtomic_Syncs(t *testing.T) {
	ff := &failingFile{}
	stubOpenTemp(t, ff)

	path := filepath.Join(t.TempDir(), "state.json")
	if err := WriteFileAtomic(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if !ff.synced {
		t.Error("temp file was not synced before the rename")
	}
}

func TestWriteFileAtomic_WriteFailures(t *testing.T) {
	tests := []struct {
		name string
		file *failingFile
	}{
		{"Write", &failingFile{writeErr: errors.New("disk full")}},
		{"Sync", &failingFile{syncErr: errors.New("io error")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubOpenTemp(t, tt.file)
			dir := t.TempDir()

			if err := WriteFileAtomic(filepath.Join(dir, "state.json"), []byte("x"), 0o600); err == nil {
				t.Fatal("WriteFileAtomic() error = nil, want error")
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("directory has %d entries, want 0 (no target, no temp file)", len(entries))
			}
		})
	}
}
