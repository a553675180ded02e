package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"karaoke/internal/media"
	"karaoke/internal/runstore"
	"karaoke/internal/services"
	"karaoke/internal/textutil"
)

var runColumns = []column{
	{title: "Run"},
	{title: "Item"},
	{title: "Workflow"},
	{title: "Status"},
	{title: "Detail"},
	{title: "Started"},
	{title: "Duration", numeric: true},
}

var artifactColumns = []column{
	{title: "Mode"},
	{title: "Format"},
	{title: "Size", numeric: true},
	{title: "Saved"},
	{title: "Path"},
}

type runJSON struct {
	ID           string `json:"id"`
	ItemID       string `json:"item_id"`
	Title        string `json:"title,omitempty"`
	Workflow     string `json:"workflow"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var itemID string
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded workflow runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]runstore.Status, 0, len(statuses))
			for _, raw := range statuses {
				status := runstore.Status(strings.ToLower(strings.TrimSpace(raw)))
				switch status {
				case runstore.StatusRunning, runstore.StatusCompleted, runstore.StatusFailed, runstore.StatusRejected:
					filter = append(filter, status)
				default:
					return services.Wrap(services.ErrInput, "runs", "parse flags", "Unknown run status", fmt.Errorf("status %q", raw))
				}
			}

			e, err := ctx.openLibrary()
			if err != nil {
				return err
			}
			defer e.Close()

			runs, err := e.store.ListRuns(cmd.Context(), runstore.ListOptions{
				Limit:  limit,
				ItemID: strings.TrimSpace(itemID),
				Status: filter,
			})
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]runJSON, 0, len(runs))
				for _, run := range runs {
					out = append(out, toRunJSON(run))
				}
				return writeJSON(cmd, out)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.ItemID,
					run.Workflow,
					string(run.Status),
					runDetail(run),
					formatTime(run.StartedAt),
					formatDuration(run.Duration()),
				})
			}
			printTable(cmd, runColumns, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&itemID, "item", "", "Only show runs for this item")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (running, completed, failed, rejected)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "artifacts <item-id>",
		Short: "List the library files recorded for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := media.Item{ID: strings.TrimSpace(args[0])}
			if err := item.Validate(); err != nil {
				return services.Wrap(services.ErrInput, "artifacts", "parse args", "Missing item id", err)
			}

			e, err := ctx.openLibrary()
			if err != nil {
				return err
			}
			defer e.Close()

			artifacts, err := e.store.ListArtifacts(cmd.Context(), item.ID)
			if err != nil {
				return err
			}

			if asJSON {
				type artifactJSON struct {
					Mode    string `json:"mode"`
					Format  string `json:"format"`
					Path    string `json:"path"`
					Size    int64  `json:"size"`
					RunID   string `json:"run_id,omitempty"`
					SavedAt string `json:"saved_at"`
				}
				out := make([]artifactJSON, 0, len(artifacts))
				for _, a := range artifacts {
					out = append(out, artifactJSON{
						Mode:    a.Mode,
						Format:  a.Format,
						Path:    a.Path,
						Size:    a.Size,
						RunID:   a.RunID,
						SavedAt: a.SavedAt.UTC().Format(time.RFC3339),
					})
				}
				return writeJSON(cmd, out)
			}

			if len(artifacts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No artifacts recorded for %s\n", item.ID)
				return nil
			}
			rows := make([][]string, 0, len(artifacts))
			for _, a := range artifacts {
				rows = append(rows, []string{
					a.Mode,
					a.Format,
					formatBytes(a.Size),
					formatTime(a.SavedAt),
					a.Path,
				})
			}
			printTable(cmd, artifactColumns, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toRunJSON(run *runstore.Run) runJSON {
	out := runJSON{
		ID:           run.ID,
		ItemID:       run.ItemID,
		Title:        run.Title,
		Workflow:     run.Workflow,
		Status:       string(run.Status),
		Stage:        run.Stage,
		Message:      run.Message,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:   run.Duration().Milliseconds(),
	}
	if !run.FinishedAt.IsZero() {
		out.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return out
}

const runDetailWidth = 60

// runDetail prefers the failure message, then the last progress label.
func runDetail(run *runstore.Run) string {
	detail := run.Message
	if run.ErrorMessage != "" {
		detail = run.ErrorMessage
		if run.Stage != "" {
			detail = run.Stage + ": " + run.ErrorMessage
		}
	}
	return textutil.Truncate(detail, runDetailWidth)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return strconv.FormatInt(size, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
