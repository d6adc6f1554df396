package bitbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/byte4ever/showcase_publisher/showcase/git"
)

// Config holds the settings needed to create a
// Bitbucket Server publishing provider.
type Config struct {
	// BaseURL is the server root
	// (e.g. "https://bb.example.com").
	BaseURL string
	// Project is the project key (e.g. "TM").
	Project string
	// Repo is the repository slug.
	Repo string
	// User is the Bitbucket API username.
	User string
	// Password is the Bitbucket API password (or
	// personal access token).
	Password string
	// MaxRetries bounds retries of failed GET and
	// DELETE requests. Writes are never retried: a lost
	// reply to a create would turn into a conflict on
	// the retry. Zero disables retrying.
	MaxRetries int
	// HTTPClient is used for API calls when set.
	HTTPClient *http.Client
}

// Provider publishes contributions on Bitbucket
// Server.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	reads    *retryablehttp.Client
	writes   *retryablehttp.Client
	repoURL  string
	utilsURL string
	project  string
	repo     string
	user     string
	password string
}

var _ git.Provider = (*Provider)(nil)

type project struct {
	Key string `json:"key,omitempty"`
}

type repository struct {
	Slug    string  `json:"slug,omitempty"`
	Project project `json:"project"`
}

type pullrequestEndpoint struct {
	ID         string     `json:"id,omitempty"`
	Repository repository `json:"repository,omitempty"`
}

type pullrequest struct {
	ID          int64                `json:"id,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	State       string               `json:"state,omitempty"`
	Open        bool                 `json:"open"`
	Closed      bool                 `json:"closed"`
	FromRef     *pullrequestEndpoint `json:"fromRef,omitempty"`
	ToRef       *pullrequestEndpoint `json:"toRef,omitempty"`
	Locked      bool                 `json:"locked"`
	Reviewers   []account            `json:"reviewers,omitempty"`
	Links       *links               `json:"links,omitempty"`
}

type account struct {
	User user `json:"user"`
}

type user struct {
	Name string `json:"name,omitempty"`
}

type links struct {
	Self []struct {
		Href string `json:"href"`
	} `json:"self"`
}

type branch struct {
	ID           string `json:"id"`
	DisplayID    string `json:"displayId"`
	LatestCommit string `json:"latestCommit"`
}

type branchPage struct {
	Values []branch `json:"values"`
}

type commit struct {
	ID string `json:"id"`
}

type apiErrors struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewProvider validates cfg and returns a Provider
// ready to talk to the repository.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf(
			"%s: base url must be set",
			errCtx,
		)
	}

	if cfg.Project == "" || cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: project and repo must be set", errCtx,
		)
	}

	if cfg.User == "" {
		return nil, fmt.Errorf(
			"%s: user must be set", errCtx,
		)
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf(
			"%s: password must be set", errCtx,
		)
	}

	reads := newClient(cfg.HTTPClient, cfg.MaxRetries)
	writes := newClient(cfg.HTTPClient, 0)

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	repoPath := "/projects/" + url.PathEscape(cfg.Project) +
		"/repos/" + url.PathEscape(cfg.Repo)

	return &Provider{
		reads:    reads,
		writes:   writes,
		repoURL:  base + "/rest/api/1.0" + repoPath,
		utilsURL: base + "/rest/branch-utils/1.0" + repoPath,
		project:  cfg.Project,
		repo:     cfg.Repo,
		user:     cfg.User,
		password: cfg.Password,
	}, nil
}

// HeadCommit returns the latest commit of branch.
func (p *Provider) HeadCommit(
	ctx context.Context,
	name string,
) (string, error) {
	const errCtx = "reading bitbucket branch head"

	q := url.Values{}
	q.Set("filterText", name)
	q.Set("limit", "100")

	var page branchPage

	status, err := p.do(
		ctx,
		http.MethodGet,
		p.repoURL+"/branches?"+q.Encode(),
		"", nil, &page,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", errCtx, name, err)
	}

	if status != http.StatusOK {
		return "", fmt.Errorf(
			"%s: %s: unexpected status %d", errCtx, name, status,
		)
	}

	for _, b := range page.Values {
		if b.DisplayID == name || b.ID == "refs/heads/"+name {
			return b.LatestCommit, nil
		}
	}

	return "", fmt.Errorf("%s: %s: branch not found", errCtx, name)
}

// CreateBranch creates branch name pointing at sha.
func (p *Provider) CreateBranch(
	ctx context.Context,
	name string,
	sha string,
) error {
	const errCtx = "creating bitbucket branch"

	payload, err := json.Marshal(map[string]string{
		"name":       name,
		"startPoint": sha,
	})
	if err != nil {
		return fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	var apiErr apiErrors

	status, err := p.do(
		ctx,
		http.MethodPost,
		p.repoURL+"/branches",
		"application/json; charset=utf-8",
		payload,
		&apiErr,
	)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", errCtx, name, err)
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		slog.Info("created branch", "branch", name, "sha", sha)

		return nil

	case status == http.StatusConflict,
		status == http.StatusBadRequest &&
			apiErr.mentions("already exists"):
		return fmt.Errorf(
			"%s: %s: %w", errCtx, name, git.ErrBranchExists,
		)

	default:
		return fmt.Errorf(
			"%s: %s: unexpected status %d: %s",
			errCtx, name, status, apiErr,
		)
	}
}

// DeleteBranch removes branch name.
func (p *Provider) DeleteBranch(
	ctx context.Context,
	name string,
) error {
	const errCtx = "deleting bitbucket branch"

	payload, err := json.Marshal(map[string]any{
		"name":   "refs/heads/" + name,
		"dryRun": false,
	})
	if err != nil {
		return fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	status, err := p.do(
		ctx,
		http.MethodDelete,
		p.utilsURL+"/branches",
		"application/json; charset=utf-8",
		payload,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", errCtx, name, err)
	}

	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf(
			"%s: %s: unexpected status %d", errCtx, name, status,
		)
	}

	slog.Info("deleted branch", "branch", name)

	return nil
}

// CommitFile uploads a new file through the browse
// endpoint. Bitbucket Server attributes the commit to
// the authenticated user; a committer override is
// logged and otherwise ignored. The blob id is not
// reported.
func (p *Provider) CommitFile(
	ctx context.Context,
	fc git.FileCommit,
) (*git.CommitResult, error) {
	const errCtx = "committing bitbucket file"

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("content", path.Base(fc.Path))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, fc.Path, err)
	}

	if _, err := fw.Write(fc.Content); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, fc.Path, err)
	}

	for k, v := range map[string]string{
		"branch":  fc.Branch,
		"message": fc.Message,
	} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, fc.Path, err,
			)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, fc.Path, err)
	}

	if fc.Committer != nil {
		slog.Debug(
			"bitbucket ignores committer override",
			"path", fc.Path,
			"committer", fc.Committer.Name,
		)
	}

	var created commit

	status, err := p.do(
		ctx,
		http.MethodPut,
		p.repoURL+"/browse/"+escapePath(fc.Path),
		mw.FormDataContentType(),
		buf.Bytes(),
		&created,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, fc.Path, err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf(
			"%s: %s: unexpected status %d",
			errCtx, fc.Path, status,
		)
	}

	slog.Info(
		"committed file",
		"branch", fc.Branch,
		"path", fc.Path,
		"commit", created.ID,
	)

	return &git.CommitResult{CommitSHA: created.ID}, nil
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
	const errCtx = "creating bitbucket pull request"

	repo := repository{
		Slug:    p.repo,
		Project: project{Key: p.project},
	}

	pr := pullrequest{
		Title:       title,
		Description: body,
		State:       "OPEN",
		Open:        true,
		FromRef: &pullrequestEndpoint{
			ID:         "refs/heads/" + from,
			Repository: repo,
		},
		ToRef: &pullrequestEndpoint{
			ID:         "refs/heads/" + to,
			Repository: repo,
		},
		Reviewers: []account{},
	}

	payload, err := json.Marshal(&pr)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	var created pullrequest

	status, err := p.do(
		ctx,
		http.MethodPost,
		p.repoURL+"/pull-requests",
		"application/json; charset=utf-8",
		payload,
		&created,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if status != http.StatusCreated {
		return nil, fmt.Errorf(
			"%s: unexpected status %d", errCtx, status,
		)
	}

	out := &git.PullRequest{
		Number: created.ID,
		Head:   from,
		Base:   to,
	}

	if created.Links != nil && len(created.Links.Self) > 0 {
		out.URL = created.Links.Self[0].Href
	}

	slog.Info(
		"created pull request",
		"number", out.Number,
		"url", out.URL,
	)

	return out, nil
}

// do sends one authenticated request and decodes a
// JSON response into out when out is non-nil and the
// body is not empty.
func (p *Provider) do(
	ctx context.Context,
	method string,
	target string,
	contentType string,
	payload []byte,
	out any,
) (int, error) {
	var body any
	if payload != nil {
		body = payload
	}

	req, err := retryablehttp.NewRequestWithContext(
		ctx, method, target, body,
	)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Atlassian-Token", "no-check")
	req.SetBasicAuth(p.user, p.password)

	client := p.writes
	if method == http.MethodGet || method == http.MethodDelete {
		client = p.reads
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf(
			"read response: %w", err,
		)
	}

	slog.Debug(
		"bitbucket response",
		"method", method,
		"status", resp.Status,
		"bytes", len(rb),
	)

	if out == nil || len(bytes.TrimSpace(rb)) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(rb, out); err != nil &&
		resp.StatusCode < http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf(
			"decode response: %w", err,
		)
	}

	return resp.StatusCode, nil
}

func newClient(
	hc *http.Client,
	retries int,
) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.Logger = slog.Default()
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if hc != nil {
		client.HTTPClient = hc
	}

	return client
}

func (e apiErrors) mentions(s string) bool {
	for _, m := range e.Errors {
		if strings.Contains(m.Message, s) {
			return true
		}
	}

	return false
}

func (e apiErrors) String() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Message)
	}

	return strings.Join(msgs, "; ")
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}

	return strings.Join(parts, "/")
}
