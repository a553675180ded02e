package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, executableName(name))
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheck(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg", 0o755)
	plain := writeStub(t, binDir, "plain", 0o644)
	t.Setenv("PATH", binDir)

	tests := []struct {
		name      string
		req       Requirement
		available bool
		command   string
		detail    string
	}{
		{name: "explicit path", req: FFmpeg(ffmpeg), available: true, command: ffmpeg},
		{name: "path lookup", req: FFmpeg(""), available: true, command: ffmpeg},
		{name: "missing on path", req: FFprobe(""), detail: "not found"},
		{name: "not executable", req: Requirement{Name: "Plain", Command: plain}, detail: "not executable"},
		{name: "unset", req: Requirement{Name: "Empty"}, detail: "not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Check(tt.req)
			if status.Available != tt.available {
				t.Fatalf("available = %v, want %v (%s)", status.Available, tt.available, status.Detail)
			}
			if tt.command != "" && status.Command != tt.command {
				t.Fatalf("command = %q, want %q", status.Command, tt.command)
			}
			if !strings.Contains(status.Detail, tt.detail) {
				t.Fatalf("detail = %q, want %q", status.Detail, tt.detail)
			}
		})
	}
}

func TestCheckBinariesKeepsOrderAndOptional(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	results := CheckBinaries([]Requirement{FFmpeg("ffmpeg"), FFprobe("ffprobe")})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "FFmpeg" || results[0].Optional {
		t.Fatalf("unexpected ffmpeg status %+v", results[0])
	}
	if results[1].Name != "FFprobe" || !results[1].Optional {
		t.Fatalf("unexpected ffprobe status %+v", results[1])
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
