package gitlab_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/showcase_publisher/showcase/git"
	glprov "github.com/byte4ever/showcase_publisher/showcase/git/gitlab"
)

const projectPrefix = "/api/v4/projects/org/project"

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := glprov.NewProvider(glprov.Config{
		Repo:        "org/project",
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_custom_host(t *testing.T) {
	t.Parallel()

	pv, err := glprov.NewProvider(glprov.Config{
		Host:        "https://gitlab.example.com",
		Repo:        "org/project",
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_token(t *testing.T) {
	t.Parallel()

	pv, err := glprov.NewProvider(glprov.Config{
		Repo: "org/project",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "access token")
}

func TestNewProvider_missing_repo(t *testing.T) {
	t.Parallel()

	pv, err := glprov.NewProvider(glprov.Config{
		AccessToken: "tok",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "repo must be set")
}

// fakeGitLab records request bodies per route and
// answers with canned responses.
type fakeGitLab struct {
	mu     sync.Mutex
	bodies map[string]map[string]any
	branch string
	posts  int
}

func (fg *fakeGitLab) ServeHTTP(
	w http.ResponseWriter,
	r *http.Request,
) {
	path := strings.TrimPrefix(r.URL.Path, projectPrefix)
	route := r.Method + " " + path

	if r.Body != nil && r.Method != http.MethodGet {
		var body map[string]any

		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		fg.mu.Lock()
		fg.bodies[route] = body
		fg.mu.Unlock()
	}

	w.Header().Set("Content-Type", "application/json")

	switch route {
	case "GET /repository/branches/main",
		"GET /repository/branches/showcase-a-1":
		_, _ = io.WriteString(
			w, `{"name": "main", "commit": {"id": "abc123"}}`,
		)
	case "POST /repository/branches":
		fg.mu.Lock()
		fg.posts++
		first := fg.posts == 1
		fg.mu.Unlock()

		if fg.branch == "lost-reply" && first {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"message": "bad gateway"}`)

			return
		}

		if fg.branch == "exists" || fg.branch == "lost-reply" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(
				w, `{"message": "Branch already exists"}`,
			)

			return
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(
			w, `{"name": "showcase-a-1", "commit": {"id": "abc123"}}`,
		)
	case "DELETE /repository/branches/showcase-a-1":
		w.WriteHeader(http.StatusNoContent)
	case "POST /repository/files/showcase/contribution-1.png":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(
			w,
			`{"file_path": "showcase/contribution-1.png",`+
				` "branch": "showcase-a-1"}`,
		)
	case "POST /merge_requests":
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{
			"iid": 9,
			"web_url": "https://gitlab.com/org/project/-/merge_requests/9"
		}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message": "404 Not Found"}`)
	}
}

func newTestProvider(
	tb testing.TB,
	branch string,
) (*glprov.Provider, *fakeGitLab) {
	tb.Helper()

	fg := &fakeGitLab{
		bodies: make(map[string]map[string]any),
		branch: branch,
	}

	ts := httptest.NewServer(fg)
	tb.Cleanup(ts.Close)

	pv, err := glprov.NewProvider(glprov.Config{
		Host:        ts.URL,
		Repo:        "org/project",
		AccessToken: "tok",
	})
	require.NoError(tb, err)

	return pv, fg
}

func TestProvider_HeadCommit(t *testing.T) {
	t.Parallel()

	pv, _ := newTestProvider(t, "")

	sha, err := pv.HeadCommit(context.Background(), "main")

	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestProvider_CreateBranch(t *testing.T) {
	t.Parallel()

	pv, fg := newTestProvider(t, "")

	err := pv.CreateBranch(
		context.Background(), "showcase-a-1", "abc123",
	)

	require.NoError(t, err)

	body := fg.bodies["POST /repository/branches"]
	assert.Equal(t, "showcase-a-1", body["branch"])
	assert.Equal(t, "abc123", body["ref"])
}

func TestProvider_CreateBranch_exists(t *testing.T) {
	t.Parallel()

	pv, _ := newTestProvider(t, "exists")

	err := pv.CreateBranch(
		context.Background(), "showcase-a-1", "abc123",
	)

	assert.ErrorIs(t, err, git.ErrBranchExists)
}

func TestProvider_CreateBranch_server_error_not_retried(
	t *testing.T,
) {
	t.Parallel()

	pv, fg := newTestProvider(t, "lost-reply")

	err := pv.CreateBranch(
		context.Background(), "showcase-a-1", "abc123",
	)

	require.Error(t, err)
	assert.NotErrorIs(t, err, git.ErrBranchExists)

	fg.mu.Lock()
	defer fg.mu.Unlock()

	assert.Equal(t, 1, fg.posts)
}

func TestProvider_DeleteBranch(t *testing.T) {
	t.Parallel()

	pv, _ := newTestProvider(t, "")

	err := pv.DeleteBranch(
		context.Background(), "showcase-a-1",
	)

	assert.NoError(t, err)
}

func TestProvider_CommitFile(t *testing.T) {
	t.Parallel()

	pv, fg := newTestProvider(t, "")

	res, err := pv.CommitFile(
		context.Background(),
		git.FileCommit{
			Branch:  "showcase-a-1",
			Path:    "showcase/contribution-1.png",
			Message: "Added contribution image file",
			Content: []byte{0x89, 'P', 'N', 'G'},
			Committer: &git.Committer{
				Name:  "Ada Lovelace",
				Email: "ada@example.com",
			},
		},
	)

	require.NoError(t, err)
	assert.Equal(t, "abc123", res.CommitSHA)
	assert.Empty(t, res.BlobSHA)

	body := fg.bodies["POST /repository/files/"+
		"showcase/contribution-1.png"]
	require.NotNil(t, body)
	assert.Equal(t, "base64", body["encoding"])
	assert.Equal(
		t,
		base64.StdEncoding.EncodeToString(
			[]byte{0x89, 'P', 'N', 'G'},
		),
		body["content"],
	)
	assert.Equal(t, "Ada Lovelace", body["author_name"])
	assert.Equal(t, "ada@example.com", body["author_email"])
}

func TestProvider_CreatePR(t *testing.T) {
	t.Parallel()

	pv, fg := newTestProvider(t, "")

	pr, err := pv.CreatePR(
		context.Background(),
		"showcase-a-1", "main", "title", "Yay!",
	)

	require.NoError(t, err)
	assert.Equal(t, int64(9), pr.Number)
	assert.Equal(
		t,
		"https://gitlab.com/org/project/-/merge_requests/9",
		pr.URL,
	)

	body := fg.bodies["POST /merge_requests"]
	assert.Equal(t, "showcase-a-1", body["source_branch"])
	assert.Equal(t, "main", body["target_branch"])
	assert.Equal(t, "Yay!", body["description"])
}
