package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scanorder/cmd/scanorder/ui"
	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/upload"
	"scanorder/internal/workflow"
)

type reviewOptions struct {
	sets    []string
	items   []string
	save    bool
	timeout time.Duration
}

func newReviewCmd(root *rootOptions) *cobra.Command {
	opts := &reviewOptions{}

	cmd := &cobra.Command{
		Use:   "review <file>",
		Short: "Upload a scan, review the extracted draft and optionally save it",
		Example: `  scanorder review invoice.pdf
  scanorder review invoice.pdf --set invoice_number=SO-1001 --item 0.qty=3 --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, zl, err := root.session()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runReview(ctx, cmd.OutOrStdout(), reviewDeps{
				uploader:  client,
				committer: client,
				source:    client,
				logger:    zl,
			}, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "set a header field, e.g. --set tax_rate=8.25 (repeatable)")
	cmd.Flags().StringArrayVar(&opts.items, "item", nil, "set a line item field, e.g. --item 0.qty=3 (repeatable)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "commit the reviewed draft as a sales order")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

type reviewDeps struct {
	uploader  port.DocumentUploader
	committer port.OrderCommitter
	source    port.EventSource
	logger    *zap.Logger
}

type headerEdit struct {
	field, value string
}

type itemEdit struct {
	index        int
	field, value string
}

func runReview(ctx context.Context, out io.Writer, deps reviewDeps, path string, opts *reviewOptions) error {
	headers, err := parseHeaderEdits(opts.sets)
	if err != nil {
		return err
	}
	items, err := parseItemEdits(opts.items)
	if err != nil {
		return err
	}

	file, closeFile, err := upload.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = closeFile() }()

	notify := make(chan struct{}, 1)
	ctrl := workflow.NewController(upload.NewSubmitter(deps.uploader, deps.logger), deps.committer, deps.source, workflow.Options{
		Logger: deps.logger,
		OnChange: func(workflow.View) {
			select {
			case notify <- struct{}{}:
			default:
			}
		},
	})

	runCtx, stop := context.WithCancel(ctx)
	go func() { _ = ctrl.Run(runCtx) }()
	defer func() {
		stop()
		<-ctrl.Done()
	}()

	p := ui.NewPrinter(out)
	p.Info("uploading %s (%s)", file.Name, file.ContentType)
	if err := ctrl.Submit(ctx, file); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	v, err := await(ctx, ctrl, notify, p, func(v workflow.View) bool {
		return v.Stage == domain.StageReviewable || v.Stage == domain.StageFailed
	})
	if err != nil {
		return err
	}
	if v.Stage == domain.StageFailed {
		p.Failure(v.Error)
		return errors.New(v.Error)
	}

	for _, e := range headers {
		if err := ctrl.EditHeader(ctx, e.field, e.value); err != nil {
			return fmt.Errorf("--set %s: %w", e.field, err)
		}
	}
	for _, e := range items {
		if err := ctrl.EditItem(ctx, e.index, e.field, e.value); err != nil {
			return fmt.Errorf("--item %d.%s: %w", e.index, e.field, err)
		}
	}

	fmt.Fprintln(out)
	p.Draft(ctrl.Snapshot().Draft)
	fmt.Fprintln(out)

	if !opts.save {
		p.Info("draft not saved; run again with --save to commit it")
		return nil
	}

	if err := ctrl.Save(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	v, err = await(ctx, ctrl, notify, p, func(v workflow.View) bool {
		return v.Stage != domain.StageSaving
	})
	if err != nil {
		return err
	}
	if v.Stage != domain.StageSaved {
		p.Failure(v.Error)
		return errors.New(v.Error)
	}
	p.Saved(v.OrderID)
	return nil
}

// await prints stage changes until done accepts the current view.
func await(ctx context.Context, ctrl *workflow.Controller, notify <-chan struct{}, p *ui.Printer, done func(workflow.View) bool) (workflow.View, error) {
	for {
		v := ctrl.Snapshot()
		p.Stage(v)
		if done(v) {
			return v, nil
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return v, fmt.Errorf("waiting in stage %s: %w", v.Stage, ctx.Err())
		}
	}
}

func parseHeaderEdits(raw []string) ([]headerEdit, error) {
	edits := make([]headerEdit, 0, len(raw))
	for _, s := range raw {
		field, value, ok := strings.Cut(s, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("--set %q: want field=value", s)
		}
		edits = append(edits, headerEdit{field: field, value: value})
	}
	return edits, nil
}

func parseItemEdits(raw []string) ([]itemEdit, error) {
	edits := make([]itemEdit, 0, len(raw))
	for _, s := range raw {
		target, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--item %q: want index.field=value", s)
		}
		idx, field, ok := strings.Cut(strings.TrimSpace(target), ".")
		if !ok || field == "" {
			return nil, fmt.Errorf("--item %q: want index.field=value", s)
		}
		index, err := strconv.Atoi(idx)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("--item %q: index must be a non-negative integer", s)
		}
		edits = append(edits, itemEdit{index: index, field: field, value: value})
	}
	return edits, nil
}
