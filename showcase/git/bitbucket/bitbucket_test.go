package bitbucket_test

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/showcase_publisher/showcase/git"
	bb "github.com/byte4ever/showcase_publisher/showcase/git/bitbucket"
)

const repoPath = "/rest/api/1.0/projects/TM/repos/site"

func newProvider(t *testing.T, mux *http.ServeMux) *bb.Provider {
	t.Helper()

	return newRetryingProvider(t, mux, 0)
}

func newRetryingProvider(
	t *testing.T,
	mux *http.ServeMux,
	retries int,
) *bb.Provider {
	t.Helper()

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	pv, err := bb.NewProvider(bb.Config{
		BaseURL:    ts.URL + "/",
		Project:    "TM",
		Repo:       "site",
		User:       "admin",
		Password:   "secret",
		MaxRetries: retries,
	})
	require.NoError(t, err)

	return pv
}

func TestNewProvider_validation(t *testing.T) {
	t.Parallel()

	valid := bb.Config{
		BaseURL:  "https://bb.example.com",
		Project:  "TM",
		Repo:     "site",
		User:     "admin",
		Password: "secret",
	}

	tests := []struct {
		name    string
		mutate  func(*bb.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*bb.Config) {}},
		{
			name:    "missing base url",
			mutate:  func(c *bb.Config) { c.BaseURL = "" },
			wantErr: "base url",
		},
		{
			name:    "missing repo",
			mutate:  func(c *bb.Config) { c.Repo = "" },
			wantErr: "project and repo",
		},
		{
			name:    "missing user",
			mutate:  func(c *bb.Config) { c.User = "" },
			wantErr: "user must be set",
		},
		{
			name:    "missing password",
			mutate:  func(c *bb.Config) { c.Password = "" },
			wantErr: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			pv, err := bb.NewProvider(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, pv)

				return
			}

			assert.Nil(t, pv)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestProvider_HeadCommit(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET "+repoPath+"/branches",
		func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "admin", user)
			assert.Equal(t, "secret", pass)
			assert.Equal(t, "main", r.URL.Query().Get("filterText"))

			_, _ = io.WriteString(w, `{"values":[
				{"id":"refs/heads/main-old","displayId":"main-old","latestCommit":"old"},
				{"id":"refs/heads/main","displayId":"main","latestCommit":"abc123"}
			]}`)
		},
	)

	pv := newProvider(t, mux)

	sha, err := pv.HeadCommit(t.Context(), "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)

	_, err = pv.HeadCommit(t.Context(), "develop")
	assert.ErrorContains(t, err, "branch not found")
}

func TestProvider_CreateBranch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantExists bool
		wantErr    bool
	}{
		{
			name:   "created",
			status: http.StatusOK,
			body:   `{"id":"refs/heads/b","displayId":"b"}`,
		},
		{
			name:       "conflict",
			status:     http.StatusConflict,
			body:       `{"errors":[{"message":"exists"}]}`,
			wantExists: true,
		},
		{
			name:       "already exists message",
			status:     http.StatusBadRequest,
			body:       `{"errors":[{"message":"Branch 'b' already exists in repository"}]}`,
			wantExists: true,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"errors":[{"message":"no write access"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]string

			mux := http.NewServeMux()
			mux.HandleFunc(
				"POST "+repoPath+"/branches",
				func(w http.ResponseWriter, r *http.Request) {
					assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, tt.body)
				},
			)

			err := newProvider(t, mux).CreateBranch(t.Context(), "b", "abc")

			assert.Equal(t, map[string]string{
				"name":       "b",
				"startPoint": "abc",
			}, got)

			switch {
			case tt.wantExists:
				require.ErrorIs(t, err, git.ErrBranchExists)
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, git.ErrBranchExists)
				assert.ErrorContains(t, err, "no write access")
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestProvider_CreateBranch_lostReplyIsNotRetried(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST "+repoPath+"/branches",
		func(w http.ResponseWriter, _ *http.Request) {
			if posts.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}

			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"errors":[{"message":"exists"}]}`)
		},
	)

	err := newRetryingProvider(t, mux, 2).
		CreateBranch(t.Context(), "b", "abc")

	require.Error(t, err)
	assert.NotErrorIs(t, err, git.ErrBranchExists)
	assert.ErrorContains(t, err, "unexpected status 502")
	assert.Equal(t, int32(1), posts.Load())
}

func TestProvider_HeadCommit_retriesReads(t *testing.T) {
	t.Parallel()

	var gets atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET "+repoPath+"/branches",
		func(w http.ResponseWriter, _ *http.Request) {
			if gets.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusServiceUnavailable)

				return
			}

			_, _ = io.WriteString(w, `{"values":[
				{"id":"refs/heads/main","displayId":"main","latestCommit":"abc123"}
			]}`)
		},
	)

	sha, err := newRetryingProvider(t, mux, 1).
		HeadCommit(t.Context(), "main")

	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
	assert.Equal(t, int32(2), gets.Load())
}

func TestProvider_DeleteBranch(t *testing.T) {
	t.Parallel()

	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc(
		"DELETE /rest/branch-utils/1.0/projects/TM/repos/site/branches",
		func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		},
	)

	err := newProvider(t, mux).DeleteBranch(t.Context(), "b")
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/b", got["name"])
	assert.Equal(t, false, got["dryRun"])
}

func TestProvider_CommitFile(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotContent string
		gotFields  = map[string]string{}
	)

	mux := http.NewServeMux()
	mux.HandleFunc(
		"PUT "+repoPath+"/browse/{path...}",
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.PathValue("path")

			_, params, err := mime.ParseMediaType(
				r.Header.Get("Content-Type"),
			)
			if !assert.NoError(t, err) {
				return
			}

			mr := multipart.NewReader(r.Body, params["boundary"])

			for {
				part, err := mr.NextPart()
				if err != nil {
					break
				}

				data, _ := io.ReadAll(part)
				if part.FormName() == "content" {
					gotContent = string(data)
					continue
				}

				gotFields[part.FormName()] = string(data)
			}

			_, _ = io.WriteString(w, `{"id":"c0ffee"}`)
		},
	)

	res, err := newProvider(t, mux).CommitFile(t.Context(), git.FileCommit{
		Branch:    "b",
		Path:      "content/a b/contribution-1.json",
		Message:   "Added contribution JSON file",
		Content:   []byte("{}"),
		Committer: &git.Committer{Name: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "c0ffee", res.CommitSHA)
	assert.Empty(t, res.BlobSHA)
	assert.Equal(t, "content/a b/contribution-1.json", gotPath)
	assert.Equal(t, "{}", gotContent)
	assert.Equal(t, map[string]string{
		"branch":  "b",
		"message": "Added contribution JSON file",
	}, gotFields)
}

func TestProvider_CreatePR(t *testing.T) {
	t.Parallel()

	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST "+repoPath+"/pull-requests",
		func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{
				"id": 7,
				"links": {"self": [{"href": "https://bb.example.com/pr/7"}]}
			}`)
		},
	)

	pr, err := newProvider(t, mux).CreatePR(
		t.Context(), "feature", "main", "Title", "Yay!",
	)
	require.NoError(t, err)

	assert.Equal(t, &git.PullRequest{
		Number: 7,
		URL:    "https://bb.example.com/pr/7",
		Head:   "feature",
		Base:   "main",
	}, pr)
	assert.Equal(t, "Title", got["title"])
	assert.Equal(t, "Yay!", got["description"])

	from, ok := got["fromRef"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "refs/heads/feature", from["id"])
	assert.Contains(
		t, string(mustJSON(t, from["repository"])), `"slug":"site"`,
	)
}

func TestProvider_CreatePR_unexpectedStatus(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(
		"POST "+repoPath+"/pull-requests",
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		},
	)

	_, err := newProvider(t, mux).CreatePR(
		t.Context(), "feature", "main", "Title", "",
	)
	assert.ErrorContains(t, err, "unexpected status 409")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}
