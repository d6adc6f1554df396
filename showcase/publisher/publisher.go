package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/byte4ever/showcase_publisher/showcase/contribution"
	"github.com/byte4ever/showcase_publisher/showcase/digester"
	"github.com/byte4ever/showcase_publisher/showcase/git"
	"github.com/byte4ever/showcase_publisher/showcase/prbody"
	"github.com/byte4ever/showcase_publisher/templating"
)

// Publisher publishes contributions to one repository.
// It holds no per-request state and may be shared
// between concurrent requests.
type Publisher struct {
	cfg Config

	dirTpl      *templating.Template
	titleTpl    *templating.Template
	bodyTpl     *templating.Template
	metaMsgTpl  *templating.Template
	imageMsgTpl *templating.Template
}

// Result describes a published contribution.
type Result struct {
	// Branch is the contribution branch.
	Branch string
	// BaseSHA is the base branch head the
	// contribution branch was created from.
	BaseSHA string
	// Timestamp is the unix time shared by the branch
	// and file names.
	Timestamp int64
	// MetadataPath is the committed metadata file.
	MetadataPath string
	// ImagePath is the committed image file.
	ImagePath string
	// MetadataCommit is the commit adding the
	// metadata file.
	MetadataCommit string
	// ImageCommit is the commit adding the image.
	ImageCommit string
	// PullRequest is the opened pull request.
	PullRequest *git.PullRequest
}

// Files returns the committed file paths.
func (r *Result) Files() []string {
	return []string{r.MetadataPath, r.ImagePath}
}

// New validates cfg, applies defaults, and parses the
// configured templates.
func New(cfg Config) (*Publisher, error) {
	const errCtx = "creating publisher"

	if cfg.Provider == nil {
		return nil, fmt.Errorf(
			"%s: provider must be set", errCtx,
		)
	}

	cfg = withDefaults(cfg)

	pub := &Publisher{cfg: cfg}

	for _, tc := range []struct {
		name string
		src  string
		dst  **templating.Template
	}{
		{"showcase dir", cfg.ShowcaseDir, &pub.dirTpl},
		{"pr title", cfg.PRTitle, &pub.titleTpl},
		{"pr body", cfg.PRBody, &pub.bodyTpl},
		{"metadata message", cfg.MetadataMessage, &pub.metaMsgTpl},
		{"image message", cfg.ImageMessage, &pub.imageMsgTpl},
	} {
		tpl, err := templating.Parse(tc.src)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, tc.name, err,
			)
		}

		if err := tpl.Check(templateVars...); err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, tc.name, err,
			)
		}

		*tc.dst = tpl
	}

	return pub, nil
}

// plan holds everything derived from a request before
// the first remote call.
type plan struct {
	branch    string
	unix      int64
	jsonPath  string
	imagePath string
	metadata  []byte
	image     []byte
	committer *git.Committer
	title     string
	body      string
	metaMsg   string
	imageMsg  string
}

// state carries results between pipeline steps.
type state struct {
	plan

	baseSHA       string
	branchCreated bool
	metaCommit    string
	imageCommit   string
	pr            *git.PullRequest
}

// step is one named stage of the pipeline.
type step struct {
	name Step
	run  func(ctx context.Context, st *state) error
}

// Publish validates req and runs the publishing
// pipeline. Validation failures are returned as
// *contribution.ValidationError before any remote call.
// Remote failures are returned as *StepError.
func (p *Publisher) Publish(
	ctx context.Context,
	req *contribution.Request,
) (*Result, error) {
	const errCtx = "publishing contribution"

	if req == nil {
		return nil, fmt.Errorf("%s: nil request", errCtx)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Captured once: branch and both paths share it.
	unix := p.cfg.Now().Unix()

	pl, err := p.derive(req, unix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"publishing contribution",
		"branch", pl.branch,
		"challenge", req.Challenge,
		"author", req.AuthorName,
		"override", pl.committer != nil,
	)

	st := &state{plan: *pl}

	for _, s := range p.steps() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, p.fail(ctx, s.name, st, ctxErr)
		}

		if err := s.run(ctx, st); err != nil {
			return nil, p.fail(ctx, s.name, st, err)
		}

		slog.Info(
			"step complete",
			"step", s.name,
			"branch", st.branch,
		)
	}

	return &Result{
		Branch:         st.branch,
		BaseSHA:        st.baseSHA,
		Timestamp:      st.unix,
		MetadataPath:   st.jsonPath,
		ImagePath:      st.imagePath,
		MetadataCommit: st.metaCommit,
		ImageCommit:    st.imageCommit,
		PullRequest:    st.pr,
	}, nil
}

// steps returns the pipeline in execution order. Each
// step depends on data produced by the one before.
func (p *Publisher) steps() []step {
	return []step{
		{StepReadHead, p.readHead},
		{StepCreateBranch, p.createBranch},
		{StepCommitMetadata, p.commitMetadata},
		{StepCommitImage, p.commitImage},
		{StepOpenPR, p.openPR},
	}
}

// Step 1: read the base branch head.
func (p *Publisher) readHead(
	ctx context.Context,
	st *state,
) error {
	sha, err := p.cfg.Provider.HeadCommit(
		ctx, p.cfg.BaseBranch,
	)
	if err != nil {
		return err
	}

	st.baseSHA = sha

	return nil
}

// Step 2: create the contribution branch.
func (p *Publisher) createBranch(
	ctx context.Context,
	st *state,
) error {
	if err := p.cfg.Provider.CreateBranch(
		ctx, st.branch, st.baseSHA,
	); err != nil {
		return err
	}

	st.branchCreated = true

	return nil
}

// Step 3: commit the metadata document.
func (p *Publisher) commitMetadata(
	ctx context.Context,
	st *state,
) error {
	sha, err := p.commitFile(ctx, git.FileCommit{
		Branch:    st.branch,
		Path:      st.jsonPath,
		Message:   st.metaMsg,
		Content:   st.metadata,
		Committer: st.committer,
	})
	if err != nil {
		return err
	}

	st.metaCommit = sha

	return nil
}

// Step 4: commit the image.
func (p *Publisher) commitImage(
	ctx context.Context,
	st *state,
) error {
	sha, err := p.commitFile(ctx, git.FileCommit{
		Branch:    st.branch,
		Path:      st.imagePath,
		Message:   st.imageMsg,
		Content:   st.image,
		Committer: st.committer,
	})
	if err != nil {
		return err
	}

	st.imageCommit = sha

	return nil
}

// Step 5: open the pull request.
func (p *Publisher) openPR(
	ctx context.Context,
	st *state,
) error {
	pr, err := p.cfg.Provider.CreatePR(
		ctx,
		st.branch,
		p.cfg.BaseBranch,
		st.title,
		st.body,
	)
	if err != nil {
		return err
	}

	if pr == nil {
		return fmt.Errorf("pull request: %w", git.ErrEmptyResult)
	}

	st.pr = pr

	return nil
}

// commitFile commits fc and checks the stored blob
// against the content sent.
func (p *Publisher) commitFile(
	ctx context.Context,
	fc git.FileCommit,
) (string, error) {
	res, err := p.cfg.Provider.CommitFile(ctx, fc)
	if err != nil {
		return "", err
	}

	if res == nil {
		return "", fmt.Errorf("%s: %w", fc.Path, git.ErrEmptyResult)
	}

	if err := digester.Verify(
		fc.Content, res.BlobSHA,
	); err != nil {
		return "", fmt.Errorf("%s: %w", fc.Path, err)
	}

	return res.CommitSHA, nil
}

// fail builds the StepError for a failed step, deleting
// the contribution branch first when one was created.
// Deletion runs on a context detached from the
// caller's cancellation.
func (p *Publisher) fail(
	ctx context.Context,
	name Step,
	st *state,
	cause error,
) *StepError {
	se := &StepError{
		Step:   name,
		Branch: st.branch,
		Err:    cause,
	}

	slog.Error(
		"step failed",
		"step", name,
		"branch", st.branch,
		"error", cause,
	)

	if !st.branchCreated || p.cfg.KeepFailedBranches {
		return se
	}

	cleanupCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), p.cfg.CleanupTimeout,
	)
	defer cancel()

	if err := p.cfg.Provider.DeleteBranch(
		cleanupCtx, st.branch,
	); err != nil {
		slog.Error(
			"failed to delete branch",
			"branch", st.branch,
			"error", err,
		)

		se.CleanupErr = err

		return se
	}

	se.RolledBack = true

	return se
}

// derive computes the branch, paths, file contents, and
// texts of a contribution.
func (p *Publisher) derive(
	req *contribution.Request,
	unix int64,
) (*plan, error) {
	const errCtx = "planning contribution"

	branch := contribution.BranchName(
		p.cfg.BranchPrefix, req.AuthorName, unix,
	)

	vars := map[string]any{
		VarChallenge:  req.Challenge,
		VarTitle:      req.Title,
		VarAuthorName: req.AuthorName,
		VarAuthorSlug: contribution.Slug(req.AuthorName),
		VarBranch:     branch,
		VarTimestamp:  strconv.FormatInt(unix, 10),
		VarImageExt:   req.ImageExt,
	}

	texts := make([]string, 5)

	for i, tpl := range []*templating.Template{
		p.dirTpl,
		p.titleTpl,
		p.bodyTpl,
		p.metaMsgTpl,
		p.imageMsgTpl,
	} {
		out, err := tpl.Execute(vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		texts[i] = out
	}

	jsonPath, imagePath := contribution.Paths(
		texts[0], unix, req.ImageExt,
	)

	metadata, err := contribution.NewDocument(req).Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	image, err := req.ImageBytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var committer *git.Committer
	if name, email, ok := req.Committer(); ok {
		committer = &git.Committer{Name: name, Email: email}
	}

	return &plan{
		branch:    branch,
		unix:      unix,
		jsonPath:  jsonPath,
		imagePath: imagePath,
		metadata:  metadata,
		image:     image,
		committer: committer,
		title:     texts[1],
		body: prbody.Generate(
			texts[2], []string{jsonPath, imagePath},
		),
		metaMsg:  texts[3],
		imageMsg: texts[4],
	}, nil
}

// IsBranchConflict reports whether err comes from a
// branch name collision.
func IsBranchConflict(err error) bool {
	return errors.Is(err, git.ErrBranchExists)
}
