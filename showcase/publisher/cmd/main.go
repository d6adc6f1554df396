// Command showcase-publisher publishes showcase
// contributions from the command line, or serves the
// publishing endpoint over plain HTTP for local use.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/byte4ever/showcase_publisher/showcase/config"
	"github.com/byte4ever/showcase_publisher/showcase/contribution"
	"github.com/byte4ever/showcase_publisher/showcase/handler"
)

// version is set at link time.
var version = "dev"

const shutdownTimeout = 10 * time.Second

type rootFlags struct {
	configPath string
	dryRun     bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return newRootCmd().ExecuteContext(ctx) //nolint:wrapcheck // cobra errors are user facing
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "showcase-publisher",
		Short:         "Publish showcase contributions as pull requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(
		&flags.configPath, "config", "",
		"YAML configuration file (defaults to $SHOWCASE_CONFIG)",
	)
	root.PersistentFlags().BoolVar(
		&flags.dryRun, "dry-run", false,
		"log remote operations instead of performing them",
	)

	root.AddCommand(
		newSubmitCmd(flags),
		newServeCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err //nolint:wrapcheck // already contextualised
	}

	if flags.dryRun {
		cfg.DryRun = true
	}

	return cfg, nil
}

func newSubmitCmd(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Publish one contribution read from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, flags, file)
		},
	}

	cmd.Flags().StringVarP(
		&file, "file", "f", "-",
		"contribution JSON file, - for stdin",
	)

	return cmd
}

func submit(cmd *cobra.Command, flags *rootFlags, file string) error {
	const errCtx = "submitting contribution"

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var src io.Reader = cmd.InOrStdin()

	if file != "-" {
		f, err := os.Open(file) //nolint:gosec // operator supplied path
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
		defer f.Close()

		src = f
	}

	var req contribution.Request
	if err := json.NewDecoder(src).Decode(&req); err != nil {
		return fmt.Errorf("%s: decode %s: %w", errCtx, file, err)
	}

	pub, err := config.NewPublisher(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	res, err := pub.Publish(cmd.Context(), &req)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if err := enc.Encode(map[string]any{
		"branch": res.Branch,
		"pullRequest": map[string]any{
			"number": res.PullRequest.Number,
			"url":    res.PullRequest.URL,
		},
		"files": res.Files(),
	}); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the publishing endpoint over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags, addr)
		},
	}

	cmd.Flags().StringVar(
		&addr, "addr", ":8080", "listen address",
	)

	return cmd
}

func serve(ctx context.Context, flags *rootFlags, addr string) error {
	const errCtx = "serving contributions"

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	pub, err := config.NewPublisher(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler.New(pub, handler.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info(
			"listening",
			"addr", addr,
			"provider", cfg.Provider,
			"dryRun", cfg.DryRun,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s: %w", errCtx, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), shutdownTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", errCtx, err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
