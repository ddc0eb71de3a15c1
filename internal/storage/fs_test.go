package storage

import (
	"testing"
)

func tempKB(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempKB(t)
	content := []byte("# bee\nannotations\n")
	if err := s.Write("bee.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("bee.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempKB(t)
	if err := s.Write("bee/honey.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("bee/honey.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempKB(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempKB(t)
	_ = s.Write("index.md", []byte("a"))
	_ = s.Write("bee/honey.md", []byte("b"))

	files, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("List = %v, want 2 files", files)
	}
}

func TestClear(t *testing.T) {
	s := tempKB(t)
	_ = s.Write("index.md", []byte("a"))
	_ = s.Write("bee/honey.md", []byte("b"))

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	files, _ := s.List()
	if len(files) != 0 {
		t.Errorf("files after clear = %v", files)
	}
}

func TestPathEscapeRejected(t *testing.T) {
	s := tempKB(t)
	if err := s.Write("../outside.md", []byte("nope")); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if _, err := s.Read("/etc/passwd"); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}
