package gitlocal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitFile(t, wt, dir, "main.go", "package main\n", "initial")

	// Branch off and change the file.
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("feature"),
		Create: true,
	}))
	commitFile(t, wt, dir, "main.go", "package main\n\nfunc run() {}\n", "add run")

	return dir
}

func TestBranchDiff(t *testing.T) {
	dir := setupRepo(t)

	out, err := BranchDiff(dir, "master", "feature")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "+func run() {}")
}

func TestBranchDiff_SameRefIsEmpty(t *testing.T) {
	dir := setupRepo(t)

	out, err := BranchDiff(dir, "feature", "feature")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBranchDiff_UnknownRef(t *testing.T) {
	dir := setupRepo(t)

	_, err := BranchDiff(dir, "master", "no-such-branch")
	require.Error(t, err)
}

func TestBranchDiff_NotARepo(t *testing.T) {
	_, err := BranchDiff(t.TempDir(), "master", "feature")
	require.Error(t, err)
}

func TestCurrentBranch(t *testing.T) {
	dir := setupRepo(t)

	branch, err := CurrentBranch(dir)
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)
}
