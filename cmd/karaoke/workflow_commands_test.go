package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func importFixtures(t *testing.T, env *cliTestEnv, item string, lyrics bool) {
	t.Helper()
	args := []string{"import", item, "--audio", writeSource(t, env.baseDir, "song.m4a", "original-audio")}
	if lyrics {
		args = append(args, "--lyrics", writeSource(t, env.baseDir, "lyrics.txt", "hello world\n"))
	}
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "original")
}

func listRuns(t *testing.T, env *cliTestEnv, item string) []runJSON {
	t.Helper()
	out, _, err := runCLI(t, []string{"runs", "--item", item, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []runJSON
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	return runs
}

func TestGenerateEnglishProducesAllArtifacts(t *testing.T) {
	env := setupCLITestEnv(t)
	importFixtures(t, env, "song-1", true)

	out, _, err := runCLI(t, []string{"generate", "song-1", "--lang", "en"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	requireContains(t, out, "Initializing")
	requireContains(t, out, "Karaoke tracks ready")

	if got := len(env.backend.jobs("split")); got != 1 {
		t.Fatalf("expected one split job, got %d", got)
	}
	english := env.backend.jobs("align_en")
	if len(english) != 1 || english[0].Options == nil || english[0].Options.Mode != "captions-word" {
		t.Fatalf("expected one word job on align_en, got %+v", english)
	}
	if got := len(env.backend.jobs("align")); got != 1 {
		t.Fatalf("expected one line job on align, got %d", got)
	}

	for _, name := range []string{
		"instruments.m4a", "vocals.m4a", "captions-word.json", "captions-line.json",
		"original-video.mp4", "instruments-video.mp4", "vocals-video.mp4", "info.json",
	} {
		if _, err := os.Stat(filepath.Join(env.libraryDir, "song-1", name)); err != nil {
			t.Fatalf("expected %s in library: %v", name, err)
		}
	}

	runs := listRuns(t, env, "song-1")
	if len(runs) != 1 || runs[0].Status != "completed" || runs[0].Workflow != "generate" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	artifacts, _, err := runCLI(t, []string{"artifacts", "song-1"}, env.configPath)
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	requireContains(t, artifacts, "captions-line")
	requireContains(t, artifacts, "vocals-video")
}

func TestGenerateWithoutAudioIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"generate", "missing"}, env.configPath)
	if err == nil {
		t.Fatal("expected generate to fail without audio")
	}
	runs := listRuns(t, env, "missing")
	if len(runs) != 1 || runs[0].Status != "rejected" {
		t.Fatalf("expected a rejected run, got %+v", runs)
	}
	if runs[0].ErrorMessage != "Can't find original audio" {
		t.Fatalf("unexpected error message %q", runs[0].ErrorMessage)
	}
}

func TestGenerateSplitFailureMarksRunFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.splitFail = true
	importFixtures(t, env, "song-2", false)

	if _, _, err := runCLI(t, []string{"generate", "song-2"}, env.configPath); err == nil {
		t.Fatal("expected split failure to fail the run")
	}
	runs := listRuns(t, env, "song-2")
	if len(runs) != 1 || runs[0].Status != "failed" {
		t.Fatalf("expected a failed run, got %+v", runs)
	}
}

func TestGenerateRejectsUnknownLanguage(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"generate", "song-3", "--lang", "!!"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid --lang to fail")
	}
	if runs := listRuns(t, env, "song-3"); len(runs) != 0 {
		t.Fatalf("expected no run to be recorded, got %+v", runs)
	}
}

func TestRealignRequiresCaptionMode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"realign", "song-4"}, env.configPath); err == nil {
		t.Fatal("expected missing --mode to fail")
	}
	if _, _, err := runCLI(t, []string{"realign", "song-4", "--mode", "verse"}, env.configPath); err == nil {
		t.Fatal("expected unknown --mode to fail")
	}
}

func TestRealignLineUsesForcedLanguage(t *testing.T) {
	env := setupCLITestEnv(t)
	importFixtures(t, env, "song-5", true)
	if _, _, err := runCLI(t, []string{"generate", "song-5", "--lang", "en"}, env.configPath); err != nil {
		t.Fatalf("generate: %v", err)
	}

	out, _, err := runCLI(t, []string{"realign", "song-5", "--mode", "line", "--lang", "es"}, env.configPath)
	if err != nil {
		t.Fatalf("realign: %v\n%s", err, out)
	}
	requireContains(t, out, "Captions realigned")

	jobs := env.backend.jobs("align")
	last := jobs[len(jobs)-1]
	if last.Options == nil || last.Options.Lang != "es" || last.Options.Mode != "captions-line" {
		t.Fatalf("unexpected realign job: %+v", last)
	}
}

func TestAlignLineNeedsLineCaptions(t *testing.T) {
	env := setupCLITestEnv(t)
	importFixtures(t, env, "song-6", true)

	_, _, err := runCLI(t, []string{"alignline", "song-6"}, env.configPath)
	if err == nil {
		t.Fatal("expected alignline without line captions to fail")
	}
	runs := listRuns(t, env, "song-6")
	if len(runs) != 1 || runs[0].ErrorMessage != "Line level sync not found" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestAlignLineAfterGenerate(t *testing.T) {
	env := setupCLITestEnv(t)
	importFixtures(t, env, "song-7", true)
	if _, _, err := runCLI(t, []string{"generate", "song-7", "--lang", "en"}, env.configPath); err != nil {
		t.Fatalf("generate: %v", err)
	}

	out, _, err := runCLI(t, []string{"alignline", "song-7"}, env.configPath)
	if err != nil {
		t.Fatalf("alignline: %v\n%s", err, out)
	}
	requireContains(t, out, "Word captions ready")
	jobs := env.backend.jobs("align_line")
	if len(jobs) != 1 || jobs[0].AlignmentsURL == "" {
		t.Fatalf("expected one align_line job with alignments, got %+v", jobs)
	}
}
