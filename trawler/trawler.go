package trawler

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"code.cloudfoundry.org/lager"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"depthcharge/gitclient"
	"depthcharge/scanners"
	"depthcharge/sniff"
)

// Options bound one scan session.
type Options struct {
	// URL is cloned into a temporary directory unless RepoPath names an
	// existing local repository.
	URL      string
	RepoPath string

	// Branch constrains the scan to one branch; empty means every branch.
	Branch string

	// SinceCommit turns detection off from the moment the commit id is
	// observed while walking a branch, so only newer commits are scanned.
	SinceCommit string

	// MaxDepth bounds how many commits are visited per branch; zero or
	// negative means unbounded.
	MaxDepth int
}

// Result is the aggregate outcome of one scan session.
type Result struct {
	// FoundIssues holds the location of every persisted finding record.
	FoundIssues []string

	// ProjectPath is the repository's working location on disk.
	ProjectPath string

	// CloneURI is the source the repository was acquired from, when cloned.
	CloneURI string
}

//go:generate counterfeiter . Sink

// Sink persists or renders one finding and returns the record's location, or
// an empty string when it keeps no addressable record.
type Sink interface {
	Write(lager.Logger, scanners.Finding) (string, error)
}

//go:generate counterfeiter . Trawler

// Trawler walks every selected branch of a repository's history and runs the
// diff worker over each unique diff exactly once.
type Trawler interface {
	Trawl(lager.Logger, Options) (Result, error)
}

type trawler struct {
	gitClient gitclient.Client
	sniffer   sniff.Sniffer
	sink      Sink
}

func NewTrawler(gitClient gitclient.Client, sniffer sniff.Sniffer, sink Sink) Trawler {
	return &trawler{
		gitClient: gitClient,
		sniffer:   sniffer,
		sink:      sink,
	}
}

func (t *trawler) Trawl(logger lager.Logger, opts Options) (Result, error) {
	logger = logger.Session("trawl", lager.Data{
		"url":       opts.URL,
		"repo-path": opts.RepoPath,
	})
	logger.Debug("starting")
	defer logger.Debug("done")

	result := Result{}

	repo, projectPath, err := t.acquire(logger, opts)
	if err != nil {
		logger.Error("failed-to-acquire-repository", err)
		return result, err
	}

	result.ProjectPath = projectPath
	if opts.RepoPath == "" {
		result.CloneURI = opts.URL
		defer os.RemoveAll(projectPath)
	}

	branches, err := t.gitClient.Branches(repo, opts.Branch)
	if err != nil {
		logger.Error("failed-to-resolve-branches", err)
		return result, err
	}

	// every diff is scanned at most once per session, even when branches
	// share ancestry
	alreadySearched := map[string]struct{}{}

	for _, branch := range branches {
		err = t.trawlBranch(logger, repo, branch, opts, alreadySearched, &result)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (t *trawler) trawlBranch(
	logger lager.Logger,
	repo *git.Repository,
	branch gitclient.Branch,
	opts Options,
	alreadySearched map[string]struct{},
	result *Result,
) error {
	logger = logger.Session("branch", lager.Data{"name": branch.Name})

	commits, err := t.gitClient.Commits(repo, branch.Head, opts.MaxDepth)
	if err != nil {
		logger.Error("failed-to-list-commits", err)
		return err
	}

	var prev *object.Commit
	sinceReached := false

	for _, curr := range commits {
		if curr.Hash.String() == opts.SinceCommit {
			sinceReached = true
		}

		if opts.SinceCommit != "" && sinceReached {
			prev = curr
			continue
		}

		if prev == nil {
			prev = curr
			continue
		}

		identity := diffIdentity(prev, curr)
		if _, searched := alreadySearched[identity]; searched {
			prev = curr
			continue
		}

		blobs, err := t.gitClient.Diff(prev, curr)
		if err != nil {
			logger.Error("failed-to-diff", err, lager.Data{"commit": curr.Hash.String()})
			return err
		}

		alreadySearched[identity] = struct{}{}

		err = t.scanDiff(logger, contextFor(branch.Name, prev), blobs, result)
		if err != nil {
			return err
		}

		prev = curr
	}

	if len(commits) == 0 {
		return nil
	}

	// the oldest visited commit has no older counterpart to pair with, so
	// its content is compared against the empty tree; without this the root
	// commit's files would never be scanned
	oldest := commits[len(commits)-1]

	blobs, err := t.gitClient.DiffEmptyTree(oldest)
	if err != nil {
		logger.Error("failed-to-diff-empty-tree", err, lager.Data{"commit": oldest.Hash.String()})
		return err
	}

	return t.scanDiff(logger, contextFor(branch.Name, oldest), blobs, result)
}

func (t *trawler) scanDiff(
	logger lager.Logger,
	context scanners.CommitContext,
	blobs []scanners.DiffBlob,
	result *Result,
) error {
	return t.sniffer.Sniff(logger, context, blobs, func(logger lager.Logger, finding scanners.Finding) error {
		location, err := t.sink.Write(logger, finding)
		if err != nil {
			return err
		}

		if location != "" {
			result.FoundIssues = append(result.FoundIssues, location)
		}

		return nil
	})
}

func (t *trawler) acquire(logger lager.Logger, opts Options) (*git.Repository, string, error) {
	if opts.RepoPath != "" {
		repo, err := t.gitClient.Open(opts.RepoPath)
		return repo, opts.RepoPath, err
	}

	projectPath, err := os.MkdirTemp("", "depthcharge")
	if err != nil {
		return nil, "", err
	}

	repo, err := t.gitClient.Clone(opts.URL, projectPath)
	if err != nil {
		os.RemoveAll(projectPath)
		return nil, "", err
	}

	return repo, projectPath, nil
}

// contextFor attributes findings to the newer commit of the pair, the one
// that introduced the change the diff describes.
func contextFor(branchName string, newer *object.Commit) scanners.CommitContext {
	return scanners.CommitContext{
		Branch:        branchName,
		CommitHash:    newer.Hash.String(),
		CommitMessage: newer.Message,
		Timestamp:     newer.Committer.When,
	}
}

// diffIdentity fingerprints a commit pair so diffs reachable from multiple
// branches are only scanned once.
func diffIdentity(prev, curr *object.Commit) string {
	sum := sha256.Sum256([]byte(prev.Hash.String() + curr.Hash.String()))
	return hex.EncodeToString(sum[:])
}
