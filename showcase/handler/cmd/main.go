// Command showcase-function is the serverless entry point
// publishing showcase contributions. Configuration comes
// from the environment, optionally layered over the YAML
// file named by SHOWCASE_CONFIG.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/byte4ever/showcase_publisher/showcase/config"
	"github.com/byte4ever/showcase_publisher/showcase/handler"
)

func main() {
	h, err := build()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	lambda.Start(h.HandleEvent)
}

func build() (*handler.Handler, error) {
	const errCtx = "starting showcase function"

	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	pub, err := config.NewPublisher(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"showcase function ready",
		"provider", cfg.Provider,
		"repo", cfg.Owner+"/"+cfg.Repo,
		"base", cfg.BaseBranch,
		"dryRun", cfg.DryRun,
	)

	return handler.New(pub, handler.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}), nil
}
