// Package deps resolves the external media tools karaoke shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Requirement describes an external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a Requirement can be executed. Command holds the
// resolved path when the binary was found on PATH.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// FFmpeg is the muxer used to render karaoke videos.
func FFmpeg(binary string) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     orDefault(binary, "ffmpeg"),
		Description: "Muxes separated audio onto the original video",
	}
}

// FFprobe reads durations and tags of imported audio. Items still process
// without it.
func FFprobe(binary string) Requirement {
	return Requirement{
		Name:        "FFprobe",
		Command:     orDefault(binary, "ffprobe"),
		Description: "Reads audio metadata for info.json",
		Optional:    true,
	}
}

// Check resolves req. Bare names are looked up on PATH; paths must point at an
// executable file.
func Check(req Requirement) Status {
	status := Status{Requirement: req}
	status.Command = strings.TrimSpace(req.Command)
	status.Description = strings.TrimSpace(req.Description)
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if strings.ContainsRune(status.Command, filepath.Separator) {
		info, err := os.Stat(status.Command)
		if err != nil || !isExecutable(info) {
			status.Detail = fmt.Sprintf("binary %q is not executable", status.Command)
			return status
		}
		status.Available = true
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckBinaries checks every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
