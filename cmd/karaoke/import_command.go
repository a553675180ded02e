package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karaoke/internal/media"
	"karaoke/internal/services"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var audioPath string
	var videoPath string
	var lyricsPath string
	var title string

	cmd := &cobra.Command{
		Use:   "import <item-id>",
		Short: "Copy source audio, video or lyrics into an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := media.Item{ID: strings.TrimSpace(args[0]), Title: strings.TrimSpace(title)}
			if err := item.Validate(); err != nil {
				return services.Wrap(services.ErrInput, "import", "parse args", "Missing item id", err)
			}
			if audioPath == "" && videoPath == "" && lyricsPath == "" {
				return services.Wrap(services.ErrInput, "import", "parse flags", "Nothing to import",
					errors.New("pass --audio, --video or --lyrics"))
			}

			e, err := ctx.openLibrary()
			if err != nil {
				return err
			}
			defer e.Close()

			unlock, err := e.library.Lock(item)
			if err != nil {
				return err
			}
			defer func() { _ = unlock() }()

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			sources := []struct {
				mode media.Mode
				path string
			}{
				{media.ModeOriginal, audioPath},
				{media.ModeOriginalVideo, videoPath},
			}
			for _, src := range sources {
				if strings.TrimSpace(src.path) == "" {
					continue
				}
				dest, err := e.library.Import(cmd.Context(), item, src.mode, src.path)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine(string(src.mode), statusOK, dest, colorize))
			}
			if strings.TrimSpace(lyricsPath) != "" {
				if err := e.library.ImportLyrics(cmd.Context(), item, lyricsPath); err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("lyrics", statusOK, e.library.ItemDir(item), colorize))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Original audio file")
	cmd.Flags().StringVar(&videoPath, "video", "", "Original video file")
	cmd.Flags().StringVar(&lyricsPath, "lyrics", "", "Plain-text lyrics file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Item title stored in item.json")
	return cmd
}
