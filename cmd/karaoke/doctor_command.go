package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"karaoke/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, ffmpeg and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "OK"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			printTable(cmd, []column{{title: "Check"}, {title: "Status"}, {title: "Detail"}}, rows)
			out := cmd.OutOrStdout()

			colorize := isTerminal(out)
			fmt.Fprintln(out, renderStatusLine("Queue driver", statusInfo, cfg.Backend.QueueDriver, colorize))
			fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, yesNo(cfg.Notifications.NtfyTopic != ""), colorize))

			failed := preflight.Failed(results)
			if len(failed) > 0 {
				fmt.Fprintln(out, renderStatusLine("Result", statusError, fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), colorize))
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			fmt.Fprintln(out, renderStatusLine("Result", statusOK, "All checks passed", colorize))
			return nil
		},
	}
}
