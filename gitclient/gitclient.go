package gitclient

import (
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"depthcharge/scanners"
)

const remoteBranchPrefix = "refs/remotes/origin/"

// ErrRepositoryNotFound distinguishes a missing repository from any other
// access failure.
var ErrRepositoryNotFound = errors.New("git repository does not exist")

var ErrBranchNotFound = errors.New("branch not found")

// Branch is a named pointer to the head commit of one scannable branch.
type Branch struct {
	Name string
	Head plumbing.Hash
}

//go:generate counterfeiter . Client

type Client interface {
	Clone(url, dest string) (*git.Repository, error)
	Open(path string) (*git.Repository, error)
	Branches(repo *git.Repository, name string) ([]Branch, error)
	Commits(repo *git.Repository, head plumbing.Hash, maxDepth int) ([]*object.Commit, error)
	Diff(from, to *object.Commit) ([]scanners.DiffBlob, error)
	DiffEmptyTree(commit *object.Commit) ([]scanners.DiffBlob, error)
}

type client struct{}

func New() Client {
	return &client{}
}

func (c *client) Clone(url, dest string) (*git.Repository, error) {
	repo, err := git.PlainClone(dest, false, &git.CloneOptions{
		URL: url,
	})
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, url)
		}
		return nil, fmt.Errorf("git clone failed: %s", err)
	}

	return repo, nil
}

func (c *client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, path)
		}
		return nil, fmt.Errorf("failed to open repository: %s", err)
	}

	return repo, nil
}

// Branches resolves the set of branches to scan: every remote branch of
// origin, or the local branches when the repository has no remote refs. With
// a non-empty name only that branch is returned.
func (c *client) Branches(repo *git.Repository, name string) ([]Branch, error) {
	branches, err := c.remoteBranches(repo)
	if err != nil {
		return nil, err
	}

	if len(branches) == 0 {
		branches, err = c.localBranches(repo)
		if err != nil {
			return nil, err
		}
	}

	if name == "" {
		return branches, nil
	}

	for _, branch := range branches {
		if branch.Name == name || strings.TrimPrefix(branch.Name, "origin/") == name {
			return []Branch{branch}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
}

func (c *client) remoteBranches(repo *git.Repository) ([]Branch, error) {
	refs, err := repo.References()
	if err != nil {
		return nil, err
	}

	var branches []Branch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		if !strings.HasPrefix(ref.Name().String(), remoteBranchPrefix) {
			return nil
		}

		branches = append(branches, Branch{
			Name: ref.Name().Short(),
			Head: ref.Hash(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return branches, nil
}

func (c *client) localBranches(repo *git.Repository) ([]Branch, error) {
	refs, err := repo.Branches()
	if err != nil {
		return nil, err
	}

	var branches []Branch
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, Branch{
			Name: ref.Name().Short(),
			Head: ref.Hash(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return branches, nil
}

// Commits lists the commits reachable from head, newest first by committer
// time, bounded by maxDepth when positive.
func (c *client) Commits(repo *git.Repository, head plumbing.Hash, maxDepth int) ([]*object.Commit, error) {
	iter, err := repo.Log(&git.LogOptions{
		From:  head,
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []*object.Commit
	err = iter.ForEach(func(commit *object.Commit) error {
		if maxDepth > 0 && len(commits) >= maxDepth {
			return storer.ErrStop
		}

		commits = append(commits, commit)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

// Diff computes the per-file patches between the trees of two commits.
func (c *client) Diff(from, to *object.Commit) ([]scanners.DiffBlob, error) {
	fromTree, err := from.Tree()
	if err != nil {
		return nil, err
	}

	toTree, err := to.Tree()
	if err != nil {
		return nil, err
	}

	return c.treeDiff(fromTree, toTree)
}

// DiffEmptyTree compares a commit's full content against the empty tree, so
// that a root commit's files are scanned even though it has no parent.
func (c *client) DiffEmptyTree(commit *object.Commit) ([]scanners.DiffBlob, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	return c.treeDiff(tree, nil)
}

func (c *client) treeDiff(from, to *object.Tree) ([]scanners.DiffBlob, error) {
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return nil, err
	}

	var blobs []scanners.DiffBlob
	for _, change := range changes {
		patch, err := change.Patch()
		if err != nil {
			return nil, err
		}

		binary := false
		for _, filePatch := range patch.FilePatches() {
			if filePatch.IsBinary() {
				binary = true
			}
		}

		blobs = append(blobs, scanners.DiffBlob{
			FromPath: change.From.Name,
			ToPath:   change.To.Name,
			Patch:    patch.String(),
			Binary:   binary,
		})
	}

	return blobs, nil
}
