package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-todo-app/internal/client"
	"go-todo-app/internal/tui"
	"go-todo-app/internal/viewmodel"
)

type options struct {
	apiURL  string
	logFile string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "todo",
		Short:        "Terminal client for the todo API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.apiURL, "api", envOr("TODO_API_URL", "http://localhost:8080"), "base URL of the todo API")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write debug logs to this file")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	// 画面を崩さないようにログはファイルか破棄
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
	}

	state := viewmodel.New(client.New(opts.apiURL))
	log.WithField("api", opts.apiURL).Debug("starting terminal client")

	p := tea.NewProgram(tui.New(ctx, state), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
