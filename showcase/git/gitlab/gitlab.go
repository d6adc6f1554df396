package gitlab

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/showcase_publisher/showcase/git"
)

// Config holds the settings needed to create a GitLab
// publishing provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project").
	Repo string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
	// HTTPClient is used for API calls when set.
	HTTPClient *http.Client
}

// Provider publishes contributions on GitLab using
// merge requests.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	client *gl.Client
	repo   string
}

var _ git.Provider = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to talk to the project.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	// Retrying a create whose reply was lost would
	// report a conflict for our own branch.
	opts := []gl.ClientOptionFunc{
		gl.WithBaseURL(host),
		gl.WithoutRetries(),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, gl.WithHTTPClient(cfg.HTTPClient))
	}

	client, err := gl.NewClient(cfg.AccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{
		client: client,
		repo:   cfg.Repo,
	}, nil
}

// HeadCommit returns the id of the commit branch
// points at.
func (p *Provider) HeadCommit(
	ctx context.Context,
	branch string,
) (string, error) {
	const errCtx = "reading gitlab branch head"

	br, resp, err := p.client.Branches.GetBranch(
		p.repo, branch, gl.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %s: %w",
			errCtx, branch, describe(resp, err),
		)
	}

	if br.Commit == nil || br.Commit.ID == "" {
		return "", fmt.Errorf(
			"%s: %s: branch has no commit",
			errCtx, branch,
		)
	}

	slog.Info(
		"read branch head",
		"branch", branch,
		"sha", br.Commit.ID,
	)

	return br.Commit.ID, nil
}

// CreateBranch creates branch name from sha. GitLab
// answers HTTP 400 "Branch already exists" for
// duplicates; that case is reported as
// git.ErrBranchExists.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	sha string,
) error {
	const errCtx = "creating gitlab branch"

	opts := gl.CreateBranchOptions{
		Branch: &name,
		Ref:    &sha,
	}

	_, resp, err := p.client.Branches.CreateBranch(
		p.repo, &opts, gl.WithContext(ctx),
	)
	if err == nil {
		slog.Info(
			"created branch",
			"branch", name,
			"sha", sha,
		)

		return nil
	}

	if resp != nil &&
		(resp.StatusCode == http.StatusConflict ||
			(resp.StatusCode == http.StatusBadRequest &&
				strings.Contains(
					err.Error(), "already exists",
				))) {
		return fmt.Errorf(
			"%s: %s: %w: %w",
			errCtx, name, git.ErrBranchExists, err,
		)
	}

	return fmt.Errorf(
		"%s: %s: %w", errCtx, name, describe(resp, err),
	)
}

// DeleteBranch removes branch name.
func (p *Provider) DeleteBranch(
	ctx context.Context,
	name string,
) error {
	const errCtx = "deleting gitlab branch"

	resp, err := p.client.Branches.DeleteBranch(
		p.repo, name, gl.WithContext(ctx),
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

// CommitFile creates fc.Path on fc.Branch. Content is
// always sent base64-encoded so binary files survive
// the JSON transport. GitLab does not report the blob
// id, so CommitResult.BlobSHA stays empty.
func (p *Provider) CommitFile(
	ctx context.Context,
	fc git.FileCommit,
) (*git.CommitResult, error) {
	const errCtx = "committing gitlab file"

	content := base64.StdEncoding.EncodeToString(
		fc.Content,
	)
	encoding := "base64"

	opts := gl.CreateFileOptions{
		Branch:        &fc.Branch,
		Encoding:      &encoding,
		Content:       &content,
		CommitMessage: &fc.Message,
	}

	if fc.Committer != nil {
		name := fc.Committer.Name
		email := fc.Committer.Email

		opts.AuthorName = &name
		opts.AuthorEmail = &email
	}

	_, resp, err := p.client.RepositoryFiles.CreateFile(
		p.repo, fc.Path, &opts, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w",
			errCtx, fc.Path, describe(resp, err),
		)
	}

	// The files API does not return the commit, read
	// it back from the branch head.
	br, resp, err := p.client.Branches.GetBranch(
		p.repo, fc.Branch, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: read commit: %w",
			errCtx, fc.Path, describe(resp, err),
		)
	}

	res := &git.CommitResult{}
	if br.Commit != nil {
		res.CommitSHA = br.Commit.ID
	}

	slog.Info(
		"committed file",
		"branch", fc.Branch,
		"path", fc.Path,
		"commit", res.CommitSHA,
	)

	return res, nil
}

// CreatePR creates a merge request from branch "from"
// into branch "to".
func (p *Provider) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) (*git.PullRequest, error) {
	const errCtx = "creating gitlab merge request"

	opts := gl.CreateMergeRequestOptions{
		Title:        &title,
		Description:  &body,
		SourceBranch: &from,
		TargetBranch: &to,
	}

	created, resp, err := p.client.MergeRequests.CreateMergeRequest(
		p.repo, &opts, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, describe(resp, err),
		)
	}

	slog.Info(
		"created merge request",
		"iid", created.IID,
		"url", created.WebURL,
	)

	return &git.PullRequest{
		Number: int64(created.IID),
		URL:    created.WebURL,
		Head:   from,
		Base:   to,
	}, nil
}

// describe logs the response body of a failed call for
// debugging and returns err annotated with the HTTP
// status when one is known.
func describe(resp *gl.Response, err error) error {
	if resp == nil || resp.Response == nil {
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
		} else if len(rb) > 0 {
			slog.Warn(
				"gitlab response",
				"body", string(rb),
			)
		}
	}

	return fmt.Errorf("status %d: %w", resp.StatusCode, err)
}
