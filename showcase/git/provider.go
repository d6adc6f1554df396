package git

import (
	"context"
	"errors"
)

// Pattern: Strategy -- swap hosting platform without
// changing the publishing pipeline.

// ErrBranchExists is returned by CreateBranch when the
// remote already holds a branch with the same name.
var ErrBranchExists = errors.New("branch already exists")

// ErrNotImplemented is returned by Funcs for operations
// whose function field was left nil.
var ErrNotImplemented = errors.New("operation not implemented")

// ErrEmptyResult is reported when a provider returns
// neither a result nor an error.
var ErrEmptyResult = errors.New("provider returned no result")

// Committer is an explicit author identity attached to
// a commit instead of the token owner's identity.
type Committer struct {
	Name  string
	Email string
}

// FileCommit describes a single file creation on a
// branch.
type FileCommit struct {
	// Branch receives the commit.
	Branch string
	// Path is the repository-relative file path.
	Path string
	// Message is the commit message.
	Message string
	// Content is the raw file content. Providers
	// take care of transport encoding.
	Content []byte
	// Committer overrides the commit identity when
	// non-nil.
	Committer *Committer
}

// CommitResult identifies the commit created by
// CommitFile.
type CommitResult struct {
	// CommitSHA is the id of the new commit.
	CommitSHA string
	// BlobSHA is the git blob id of the stored file
	// as reported by the host. Empty when the host
	// does not report it.
	BlobSHA string
}

// PullRequest identifies an opened pull (or merge)
// request.
type PullRequest struct {
	Number int64
	URL    string
	Head   string
	Base   string
}

// Provider performs the remote repository operations
// needed to publish a contribution.
type Provider interface {
	// HeadCommit returns the commit SHA the given
	// branch points at.
	HeadCommit(ctx context.Context, branch string) (string, error)

	// CreateBranch creates branch name at sha.
	CreateBranch(ctx context.Context, name string, sha string) error

	// DeleteBranch removes branch name.
	DeleteBranch(ctx context.Context, name string) error

	// CommitFile creates a file on a branch.
	CommitFile(ctx context.Context, fc FileCommit) (*CommitResult, error)

	// CreatePR opens a pull request from branch
	// "from" into branch "to".
	CreatePR(
		ctx context.Context,
		from string,
		to string,
		title string,
		body string,
	) (*PullRequest, error)
}
