package git

import (
	"context"
	"fmt"
	"log/slog"
)

// Funcs adapts plain functions to the Provider
// interface. Nil fields make the matching operation
// fail with ErrNotImplemented.
type Funcs struct {
	HeadCommitFunc   func(ctx context.Context, branch string) (string, error)
	CreateBranchFunc func(ctx context.Context, name string, sha string) error
	DeleteBranchFunc func(ctx context.Context, name string) error
	CommitFileFunc   func(ctx context.Context, fc FileCommit) (*CommitResult, error)
	CreatePRFunc     func(
		ctx context.Context,
		from string,
		to string,
		title string,
		body string,
	) (*PullRequest, error)
}

var _ Provider = Funcs{}

// HeadCommit delegates to HeadCommitFunc.
func (f Funcs) HeadCommit(
	ctx context.Context,
	branch string,
) (string, error) {
	if f.HeadCommitFunc == nil {
		return "", fmt.Errorf(
			"head commit: %w", ErrNotImplemented,
		)
	}

	return f.HeadCommitFunc(ctx, branch)
}

// CreateBranch delegates to CreateBranchFunc.
func (f Funcs) CreateBranch(
	ctx context.Context,
	name string,
	sha string,
) error {
	if f.CreateBranchFunc == nil {
		return fmt.Errorf(
			"create branch: %w", ErrNotImplemented,
		)
	}

	return f.CreateBranchFunc(ctx, name, sha)
}

// DeleteBranch delegates to DeleteBranchFunc.
func (f Funcs) DeleteBranch(
	ctx context.Context,
	name string,
) error {
	if f.DeleteBranchFunc == nil {
		return fmt.Errorf(
			"delete branch: %w", ErrNotImplemented,
		)
	}

	return f.DeleteBranchFunc(ctx, name)
}

// CommitFile delegates to CommitFileFunc.
func (f Funcs) CommitFile(
	ctx context.Context,
	fc FileCommit,
) (*CommitResult, error) {
	if f.CommitFileFunc == nil {
		return nil, fmt.Errorf(
			"commit file: %w", ErrNotImplemented,
		)
	}

	return f.CommitFileFunc(ctx, fc)
}

// CreatePR delegates to CreatePRFunc.
func (f Funcs) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) (*PullRequest, error) {
	if f.CreatePRFunc == nil {
		return nil, fmt.Errorf(
			"create pull request: %w", ErrNotImplemented,
		)
	}

	return f.CreatePRFunc(ctx, from, to, title, body)
}

// DryRun returns a Provider that only logs what it
// would do. headSHA is reported as the head of every
// branch.
func DryRun(headSHA string) Provider {
	return Funcs{
		HeadCommitFunc: func(
			_ context.Context,
			branch string,
		) (string, error) {
			slog.Info(
				"dry run: head commit",
				"branch", branch,
				"sha", headSHA,
			)

			return headSHA, nil
		},
		CreateBranchFunc: func(
			_ context.Context,
			name string,
			sha string,
		) error {
			slog.Info(
				"dry run: create branch",
				"branch", name,
				"sha", sha,
			)

			return nil
		},
		DeleteBranchFunc: func(
			_ context.Context,
			name string,
		) error {
			slog.Info(
				"dry run: delete branch",
				"branch", name,
			)

			return nil
		},
		CommitFileFunc: func(
			_ context.Context,
			fc FileCommit,
		) (*CommitResult, error) {
			slog.Info(
				"dry run: commit file",
				"branch", fc.Branch,
				"path", fc.Path,
				"bytes", len(fc.Content),
				"override", fc.Committer != nil,
			)

			return &CommitResult{}, nil
		},
		CreatePRFunc: func(
			_ context.Context,
			from string,
			to string,
			title string,
			_ string,
		) (*PullRequest, error) {
			slog.Info(
				"dry run: create pull request",
				"from", from,
				"to", to,
				"title", title,
			)

			return &PullRequest{Head: from, Base: to}, nil
		},
	}
}
