package ioz

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestDisplayName(t *testing.T) {
	rows := []struct {
		name string
		want string
	}{
		{"", "(stdin)"},
		{"-", "(stdin)"},
		{"archive.mrt", "archive.mrt"},
	}
	for _, r := range rows {
		if got := DisplayName(r.name); got != r.want {
			t.Errorf("DisplayName(%q) = %q, want %q", r.name, got, r.want)
		}
	}
}

func TestOpenPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.mrt")
	want := []byte("hello mrt")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpenGzipFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.gz")
	want := []byte("compressed mrt body")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(want); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open("/nonexistent/path/to/archive.mrt"); err == nil {
		t.Fatal("expected error opening a nonexistent file")
	}
}
