package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/revuekit/revue/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHost_RequiresToken(t *testing.T) {
	_, err := NewHost("", "")
	require.Error(t, err)

	h, err := NewHost("ghp_test", "")
	require.NoError(t, err)
	assert.Equal(t, "github", h.Info().Name)
	assert.Equal(t, "https://api.github.com", h.Info().BaseURL)
	assert.NoError(t, h.Validate())
}

func TestStatusError_SentinelMapping(t *testing.T) {
	assert.ErrorIs(t, statusError(404, []byte("nope")), vcs.ErrNotFound)
	assert.ErrorIs(t, statusError(401, nil), vcs.ErrUnauthorized)
	assert.ErrorIs(t, statusError(403, nil), vcs.ErrUnauthorized)
	assert.ErrorIs(t, statusError(429, nil), vcs.ErrTransient)
	assert.ErrorIs(t, statusError(500, nil), vcs.ErrTransient)
	assert.ErrorIs(t, statusError(503, nil), vcs.ErrTransient)

	err := statusError(422, []byte("validation failed"))
	assert.NotErrorIs(t, err, vcs.ErrNotFound)
	assert.NotErrorIs(t, err, vcs.ErrTransient)
	assert.Contains(t, err.Error(), "422")
}

func TestHasNextPage(t *testing.T) {
	assert.False(t, hasNextPage(""))
	assert.False(t, hasNextPage(`<https://api.github.com/x?page=1>; rel="prev"`))
	assert.True(t, hasNextPage(
		`<https://api.github.com/x?page=2>; rel="next", <https://api.github.com/x?page=5>; rel="last"`))
}

func newTestHost(t *testing.T, handler http.Handler) (*Host, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	h, err := NewHost("ghp_test", srv.URL)
	require.NoError(t, err)
	return h.(*Host), srv
}

func TestFetchPullRequest(t *testing.T) {
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/pulls/42", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "ghp_test")
		fmt.Fprint(w, `{
			"number": 42,
			"title": "Fix the thing",
			"body": "it was broken",
			"user": {"login": "dev"},
			"head": {"ref": "fix-thing", "sha": "headsha"},
			"base": {"ref": "main", "sha": "basesha"},
			"state": "open",
			"html_url": "https://github.com/org/repo/pull/42",
			"labels": [{"name": "bug"}]
		}`)
	}))

	pr, err := h.FetchPullRequest(context.Background(), "org/repo", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "Fix the thing", pr.Title)
	assert.Equal(t, "dev", pr.Author)
	assert.Equal(t, "fix-thing", pr.SourceBranch)
	assert.Equal(t, "main", pr.TargetBranch)
	assert.Equal(t, "headsha", pr.Refs.HeadSHA)
	assert.Equal(t, "basesha", pr.Refs.BaseSHA)
	assert.True(t, pr.HasLabel("bug"))
}

func TestFetchPullRequest_NotFound(t *testing.T) {
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := h.FetchPullRequest(context.Background(), "org/repo", 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrNotFound)
}

func TestFetchPatches_Paginates(t *testing.T) {
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Link", `<https://api.github.com/repos/org/repo/pulls/1/files?page=2>; rel="next"`)
			fmt.Fprint(w, `[{"filename": "a.go", "status": "modified", "patch": "@@ -1 +1 @@"}]`)
			return
		}
		fmt.Fprint(w, `[{"filename": "b.go", "previous_filename": "old_b.go", "status": "renamed", "patch": "@@ -1 +1 @@"}]`)
	}))

	patches, err := h.FetchPatches(context.Background(), "org/repo", 1)
	require.NoError(t, err)
	require.Len(t, patches, 2)

	assert.Equal(t, "a.go", patches[0].NewPath)
	assert.Equal(t, "a.go", patches[0].OldPath)
	assert.False(t, patches[0].Renamed)

	assert.Equal(t, "b.go", patches[1].NewPath)
	assert.Equal(t, "old_b.go", patches[1].OldPath)
	assert.True(t, patches[1].Renamed)
}

func TestPostInlineComment(t *testing.T) {
	var got map[string]interface{}
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/pulls/1/comments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	}))

	err := h.PostInlineComment(context.Background(), "org/repo", 1,
		vcs.DiffRefs{HeadSHA: "headsha"},
		vcs.InlineComment{FilePath: "a.go", Line: 3, Body: "problem here"},
	)
	require.NoError(t, err)
	assert.Equal(t, "headsha", got["commit_id"])
	assert.Equal(t, "a.go", got["path"])
	assert.Equal(t, float64(3), got["line"])
	assert.Equal(t, "RIGHT", got["side"])
}

func TestPostInlineComment_RequiresAnchor(t *testing.T) {
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	err := h.PostInlineComment(context.Background(), "org/repo", 1,
		vcs.DiffRefs{}, vcs.InlineComment{FilePath: "a.go", Line: 3})
	assert.Error(t, err)

	err = h.PostInlineComment(context.Background(), "org/repo", 1,
		vcs.DiffRefs{HeadSHA: "headsha"}, vcs.InlineComment{FilePath: "a.go", Line: 0})
	assert.Error(t, err)
}

func TestCreateIssue(t *testing.T) {
	h, _ := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/org/repo/issues", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"html_url": "https://github.com/org/repo/issues/9"}`)
	}))

	url, err := h.CreateIssue(context.Background(), "org/repo", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/org/repo/issues/9", url)
}

func TestFormatSuggestionBlock(t *testing.T) {
	h, err := NewHost("ghp_test", "")
	require.NoError(t, err)
	assert.Equal(t, "```suggestion\nx := 1\n```", h.FormatSuggestionBlock("x := 1"))
}
