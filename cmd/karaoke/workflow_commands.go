package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karaoke/internal/jobqueue"
	"karaoke/internal/language"
	"karaoke/internal/logging"
	"karaoke/internal/media"
	"karaoke/internal/services"
	"karaoke/internal/stageexec"
	"karaoke/internal/workflow"
)

type workflowBody func(ctx context.Context, e *engine, item media.Item, status jobqueue.StatusFunc) error

type workflowRequest struct {
	name string
	item media.Item
	lang string
	body workflowBody
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var title string
	var lang string

	cmd := &cobra.Command{
		Use:   "generate <item-id>",
		Short: "Separate stems, align lyrics and render videos for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, workflowRequest{
				name: workflow.WorkflowGenerate,
				item: media.Item{ID: strings.TrimSpace(args[0]), Title: strings.TrimSpace(title)},
				lang: lang,
				body: func(ctx context.Context, e *engine, item media.Item, status jobqueue.StatusFunc) error {
					return e.flow.Generate(ctx, item, status)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title hint used to find shared lyrics")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", langFlagUsage())
	return cmd
}

func newRealignCommand(ctx *commandContext) *cobra.Command {
	var title string
	var lang string
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "realign <item-id>",
		Short: "Re-run lyric alignment for one caption level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := media.ParseCaptionMode(modeFlag)
			if err != nil {
				return services.Wrap(services.ErrInput, workflow.WorkflowRealign, "parse flags", "Unknown caption mode", err)
			}
			return ctx.runWorkflow(cmd, workflowRequest{
				name: workflow.WorkflowRealign,
				item: media.Item{ID: strings.TrimSpace(args[0]), Title: strings.TrimSpace(title)},
				lang: lang,
				body: func(ctx context.Context, e *engine, item media.Item, status jobqueue.StatusFunc) error {
					return e.flow.Realign(ctx, item, mode, status)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Caption level to realign: line or word")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title hint used to find shared lyrics")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", langFlagUsage())
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func newAlignLineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "alignline <item-id>",
		Short: "Derive word captions from the item's line captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, workflowRequest{
				name: workflow.WorkflowAlignLine,
				item: media.Item{ID: strings.TrimSpace(args[0])},
				body: func(ctx context.Context, e *engine, item media.Item, status jobqueue.StatusFunc) error {
					return e.flow.AlignLine(ctx, item, status)
				},
			})
		},
	}
}

// runWorkflow holds the item lock for the whole run, records it in the
// journal, and renders progress labels to stdout.
func (c *commandContext) runWorkflow(cmd *cobra.Command, req workflowRequest) error {
	if req.item.ID == "" {
		return services.Wrap(services.ErrInput, req.name, "parse args", "Missing item id", media.ErrEmptyItemID)
	}
	lang := strings.TrimSpace(req.lang)
	if lang != "" && language.Normalize(lang) == "" {
		return services.Wrap(services.ErrInput, req.name, "parse flags", "Unknown language", fmt.Errorf("lang %q", lang))
	}

	e, err := c.openEngine(lang)
	if err != nil {
		return err
	}
	defer e.Close()

	unlock, err := e.library.Lock(req.item)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	ctx := cmd.Context()
	if reset, err := e.store.ResetStale(ctx, req.item.ID); err != nil {
		e.logger.Warn("stale run reset failed",
			logging.Error(err),
			logging.String(logging.FieldItemID, req.item.ID),
		)
	} else if reset > 0 {
		e.logger.Info("interrupted runs marked failed",
			logging.Int64("count", reset),
			logging.String(logging.FieldItemID, req.item.ID),
		)
	}
	if lang != "" {
		if err := e.library.SetLanguage(ctx, req.item, lang); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	progress := newProgressLine(out)
	err = stageexec.Run(ctx, stageexec.Options{
		Logger:   e.logger,
		Store:    e.store,
		Notifier: e.notifier,
		Workflow: req.name,
		Item:     req.item,
		Status:   progress.Update,
		Exec: func(ctx context.Context, status jobqueue.StatusFunc) error {
			return req.body(ctx, e, req.item, status)
		},
	})
	progress.Done()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderStatusLine(req.item.Label(), statusOK, workflowDoneMessage(req.name), isTerminal(out)))
	return nil
}

func workflowDoneMessage(name string) string {
	switch name {
	case workflow.WorkflowGenerate:
		return "Karaoke tracks ready"
	case workflow.WorkflowRealign:
		return "Captions realigned"
	case workflow.WorkflowAlignLine:
		return "Word captions ready"
	default:
		return "Done"
	}
}

func langFlagUsage() string {
	return "Lyrics language code, skipping detection (" + strings.Join(language.Supported(), ", ") + ")"
}
