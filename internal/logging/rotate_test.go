package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotateIfLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := rotateIfLarge(path, 4); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}

	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rotateIfLarge(path, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatal("small log should not rotate")
	}

	if err := os.WriteFile(path, []byte("abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rotateIfLarge(path, 4); err != nil {
		t.Fatal(err)
	}
	rotated, err := os.ReadFile(path + ".1")
	if err != nil || string(rotated) != "abcdef" {
		t.Fatalf("expected rotated content, got %q, %v", rotated, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected original log to move")
	}
}
