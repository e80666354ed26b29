package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postpilot/internal/pipeline"
)

// postCmd runs one full publish attempt
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Select, compose, and publish one post",
	Long: `Runs a single publish attempt end to end:
  1. Load the recency history
  2. Select the first article not seen recently, widening pages if needed
  3. Record the selection, then compose the post text
  4. Drive the browser login and compose flow and submit the post

The attempt is aborted cleanly on Ctrl-C; the browser session is always
released.`,
	RunE: runPost,
}

func runPost(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return pipeline.New(cfg, logger).Run(ctx)
}
