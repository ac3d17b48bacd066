// Package gitlocal extracts diffs from a local repository so a branch can be
// reviewed before any pull request exists.
package gitlocal

import (
	"fmt"
	"strings"

	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

// BranchDiff returns the unified diff between baseRef and headRef in the
// repository at repoPath. Refs may be branch names, tags, or commit hashes.
func BranchDiff(repoPath, baseRef, headRef string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("gitlocal: failed to open repository %s: %w", repoPath, err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return "", err
	}
	headCommit, err := resolveCommit(repo, headRef)
	if err != nil {
		return "", err
	}

	patch, err := baseCommit.Patch(headCommit)
	if err != nil {
		return "", fmt.Errorf("gitlocal: failed to compute diff %s..%s: %w", baseRef, headRef, err)
	}

	return patch.String(), nil
}

// CurrentBranch returns the short name of the checked-out branch.
func CurrentBranch(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("gitlocal: failed to open repository %s: %w", repoPath, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("gitlocal: failed to read HEAD: %w", err)
	}
	return strings.TrimPrefix(head.Name().String(), "refs/heads/"), nil
}

func resolveCommit(repo *git.Repository, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		// Branch may only exist on a remote.
		hash, err = repo.ResolveRevision(plumbing.Revision("origin/" + ref))
		if err != nil {
			return nil, fmt.Errorf("gitlocal: failed to resolve %q: %w", ref, err)
		}
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}
