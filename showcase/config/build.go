package config

import (
	"fmt"
	"strings"

	"github.com/byte4ever/showcase_publisher/showcase/git"
	"github.com/byte4ever/showcase_publisher/showcase/git/bitbucket"
	"github.com/byte4ever/showcase_publisher/showcase/git/github"
	"github.com/byte4ever/showcase_publisher/showcase/git/gitlab"
	"github.com/byte4ever/showcase_publisher/showcase/publisher"
)

// dryRunSHA is the head reported by the dry run
// provider.
const dryRunSHA = "0000000000000000000000000000000000000000"

// NewProvider creates a git.Provider for the configured
// platform. Pattern: Factory -- selects platform
// implementation at runtime.
func NewProvider(cfg Config) (git.Provider, error) {
	const errCtx = "creating git provider"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if cfg.DryRun {
		return git.DryRun(dryRunSHA), nil
	}

	switch cfg.Provider {
	case ProviderGitHub:
		p, err := github.NewProvider(github.Config{
			RepoOwner:      cfg.Owner,
			Repo:           cfg.Repo,
			AccessToken:    cfg.GitHub.Token,
			EnterpriseHost: cfg.GitHub.EnterpriseHost,
			APIURL:         cfg.GitHub.APIURL,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return p, nil

	case ProviderGitLab:
		project := cfg.GitLab.Project
		if project == "" {
			project = strings.Join(
				[]string{cfg.Owner, cfg.Repo}, "/",
			)
		}

		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        cfg.GitLab.Host,
			Repo:        project,
			AccessToken: cfg.GitLab.Token,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return p, nil

	case ProviderBitbucket:
		key := cfg.Bitbucket.Project
		if key == "" {
			key = cfg.Owner
		}

		p, err := bitbucket.NewProvider(bitbucket.Config{
			BaseURL:    cfg.Bitbucket.BaseURL,
			Project:    key,
			Repo:       cfg.Repo,
			User:       cfg.Bitbucket.User,
			Password:   cfg.Bitbucket.Password,
			MaxRetries: cfg.Bitbucket.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown provider %q", errCtx, cfg.Provider,
		)
	}
}

// NewPublisher wires a publisher.Publisher from cfg.
func NewPublisher(cfg Config) (*publisher.Publisher, error) {
	const errCtx = "creating publisher from config"

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	pub, err := publisher.New(publisher.Config{
		Provider:           provider,
		BaseBranch:         cfg.BaseBranch,
		BranchPrefix:       cfg.BranchPrefix,
		ShowcaseDir:        cfg.ShowcaseDir,
		PRTitle:            cfg.PRTitle,
		PRBody:             cfg.PRBody,
		MetadataMessage:    cfg.MetadataMessage,
		ImageMessage:       cfg.ImageMessage,
		KeepFailedBranches: cfg.KeepFailedBranches,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return pub, nil
}
