// Package commands implements the scanorder command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scanorder/cmd/scanorder/ui"
	"scanorder/internal/api"
	"scanorder/internal/config"
	"scanorder/internal/logger"
)

type rootOptions struct {
	backendURL string
	verbose    bool
	noColor    bool
}

// NewRootCmd builds the scanorder command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "scanorder",
		Short: "Turn scanned invoices into sales orders",
		Long: `scanorder uploads a scanned invoice to the extraction backend, follows the
extraction as it runs, lets you correct the extracted draft and commits it as a
sales order.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(opts.noColor)
		},
	}

	root.PersistentFlags().StringVar(&opts.backendURL, "backend", "", "backend base URL (default from SCANORDER_BACKEND_BASE_URL)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newReviewCmd(opts))
	root.AddCommand(newOrdersCmd(opts))
	return root
}

// Execute runs the root command. An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// session loads configuration and builds the backend client and logger.
func (o *rootOptions) session() (*config.Config, *api.Client, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.backendURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(o.backendURL, "/")
	}

	// The terminal belongs to the command's own output unless asked otherwise.
	if o.verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	return cfg, api.NewClient(&cfg.Backend), zl, nil
}
