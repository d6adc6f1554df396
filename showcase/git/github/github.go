package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/showcase_publisher/showcase/git"
)

// Config holds the settings needed to create a GitHub
// publishing provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// APIURL overrides the REST API base URL. Takes
	// precedence over EnterpriseHost.
	APIURL string
	// HTTPClient is used for API calls when set.
	HTTPClient *http.Client
}

// Provider publishes contributions on GitHub.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

var _ git.Provider = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to talk to the repository.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(cfg.HTTPClient).
		WithAuthToken(cfg.AccessToken)

	switch {
	case cfg.APIURL != "":
		base := cfg.APIURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: api url: %w", errCtx, err,
			)
		}

		client.BaseURL = u

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// HeadCommit returns the SHA of the commit branch
// points at.
func (p *Provider) HeadCommit(
	ctx context.Context,
	branch string,
) (string, error) {
	const errCtx = "reading github branch head"

	ref, resp, err := p.client.Git.GetRef(
		ctx, p.repoOwner, p.repo, "heads/"+branch,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w",
			errCtx, branch, describe(resp, err),
		)
	}

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf(
			"%s: %s: empty object sha", errCtx, branch,
		)
	}

	slog.Info(
		"read branch head",
		"branch", branch,
		"sha", sha,
	)

	return sha, nil
}

// CreateBranch creates refs/heads/name at sha. An
// existing reference is reported as git.ErrBranchExists.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	sha string,
) error {
	const errCtx = "creating github branch"

	refName := "refs/heads/" + name

	_, resp, err := p.client.Git.CreateRef(
		ctx, p.repoOwner, p.repo,
		&gh.Reference{
			Ref:    &refName,
			Object: &gh.GitObject{SHA: &sha},
		},
	)
	if err == nil {
		slog.Info(
			"created branch",
			"branch", name,
			"sha", sha,
		)

		return nil
	}

	if branchExists(resp, err) {
		return fmt.Errorf(
			"%s: %s: %w: %w",
			errCtx, name, git.ErrBranchExists, err,
		)
	}

	return fmt.Errorf(
		"%s: %s: %w", errCtx, name, describe(resp, err),
	)
}

// branchExists reports whether a failed ref creation
// collided with an existing ref. GitHub also answers 422
// for unknown objects and malformed names, so the
// message has to be checked.
func branchExists(resp *gh.Response, err error) bool {
	if resp == nil {
		return false
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return true
	case http.StatusUnprocessableEntity:
		var ghErr *gh.ErrorResponse
		if !errors.As(err, &ghErr) {
			return false
		}

		return strings.Contains(
			ghErr.Message, "Reference already exists",
		)
	default:
		return false
	}
}

// DeleteBranch removes refs/heads/name.
func (p *Provider) DeleteBranch(
	ctx context.Context,
	name string,
) error {
	const errCtx = "deleting github branch"

	resp, err := p.client.Git.DeleteRef(
		ctx, p.repoOwner, p.repo, "heads/"+name,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, name, describe(resp, err),
		)
	}

	slog.Info("deleted branch", "branch", name)

	return nil
}

// CommitFile creates fc.Path on fc.Branch through the
// contents API. The client base64-encodes Content.
func (p *Provider) CommitFile(
	ctx context.Context,
	fc git.FileCommit,
) (*git.CommitResult, error) {
	const errCtx = "committing github file"

	opts := &gh.RepositoryContentFileOptions{
		Message: &fc.Message,
		Content: fc.Content,
		Branch:  &fc.Branch,
	}

	if fc.Committer != nil {
		name := fc.Committer.Name
		email := fc.Committer.Email

		opts.Committer = &gh.CommitAuthor{
			Name:  &name,
			Email: &email,
		}
	}

	created, resp, err := p.client.Repositories.CreateFile(
		ctx, p.repoOwner, p.repo, fc.Path, opts,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w",
			errCtx, fc.Path, describe(resp, err),
		)
	}

	res := &git.CommitResult{
		CommitSHA: created.Commit.GetSHA(),
		BlobSHA:   created.Content.GetSHA(),
	}

	slog.Info(
		"committed file",
		"branch", fc.Branch,
		"path", fc.Path,
		"commit", res.CommitSHA,
	)

	return res, nil
}

// CreatePR creates a pull request from branch "from"
// into branch "to".
func (p *Provider) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) (*git.PullRequest, error) {
	const errCtx = "creating github pull request"

	pr := &gh.NewPullRequest{
		Title: &title,
		Head:  &from,
		Base:  &to,
		Body:  &body,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.repoOwner, p.repo, pr,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, describe(resp, err),
		)
	}

	slog.Info(
		"created pull request",
		"number", created.GetNumber(),
		"url", created.GetHTMLURL(),
	)

	return &git.PullRequest{
		Number: int64(created.GetNumber()),
		URL:    created.GetHTMLURL(),
		Head:   from,
		Base:   to,
	}, nil
}

// describe logs the response body of a failed call for
// debugging and returns err annotated with the HTTP
// status when one is known.
func describe(resp *gh.Response, err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		slog.Warn(
			"github response",
			"status", ghErr.Response.StatusCode,
			"message", ghErr.Message,
		)

		return err
	}

	if resp == nil {
		return err
	}

	if resp.Body != nil {
		defer resp.Body.Close() //nolint:errcheck

		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			slog.Warn(
				"cannot read response body",
				"error", readErr,
			)
		} else {
			slog.Warn(
				"github response",
				"body", string(rb),
			)
		}
	}

	return fmt.Errorf("status %d: %w", resp.StatusCode, err)
}
