package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talefetch/talefetch/internal/events"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <item-id> [title]",
	Short: "Acquire a single audiobook and exit",
	Long: `Obtains download rights for the item, runs the download through
conversion and validation, files the result into the library, and exits.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := ""
		if len(args) > 1 {
			title = args[1]
		}
		return runFetch(args[0], title)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(id, title string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.arbiter.Start(ctx); err != nil {
		return fmt.Errorf("start arbiter: %w", err)
	}
	if p.watcher != nil {
		go func() { _ = p.watcher.Run(ctx) }()
	}

	// The first terminal event for our item decides the exit status.
	outcome := make(chan error, 1)
	p.sinks.OnCompletion(func(e *events.Completed) {
		if e.ItemID() == id {
			fmt.Printf("done: %s\n", e.FinalPath)
			outcome <- nil
		}
	})
	p.sinks.OnFailure(func(e *events.Failed) {
		if e.ItemID() == id {
			outcome <- fmt.Errorf("acquisition failed: %s", e.Message)
		}
	})

	if err := p.orch.Enqueue(ctx, id, title); err != nil {
		p.orch.Shutdown()
		return err
	}

	var result error
	select {
	case result = <-outcome:
	case <-ctx.Done():
		result = ctx.Err()
	}

	p.orch.Shutdown()
	p.sinks.Wait()
	return result
}
