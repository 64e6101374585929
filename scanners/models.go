package scanners

import "time"

// DiffBlob is one changed file within a diff between two commits (or between
// a commit and the empty tree). At least one of FromPath and ToPath is set.
type DiffBlob struct {
	FromPath string
	ToPath   string
	Patch    string
	Binary   bool
}

// Path returns the effective path of the change: the post-image path when the
// file still exists, otherwise the pre-image path.
func (b DiffBlob) Path() string {
	if b.ToPath != "" {
		return b.ToPath
	}

	return b.FromPath
}

// CommitContext carries the provenance attached to every finding produced
// while scanning one diff.
type CommitContext struct {
	Branch        string
	CommitHash    string
	CommitMessage string
	Timestamp     time.Time
}

const dateFormat = "2006-01-02 15:04:05"

type Finding struct {
	Reason        string   `json:"reason"`
	Date          string   `json:"date"`
	Path          string   `json:"path"`
	Branch        string   `json:"branch"`
	CommitMessage string   `json:"commit"`
	CommitHash    string   `json:"commit_hash"`
	Diff          string   `json:"diff"`
	StringsFound  []string `json:"strings_found"`
	PrintDiff     string   `json:"print_diff"`
}

func NewFinding(
	reason string,
	context CommitContext,
	blob DiffBlob,
	stringsFound []string,
	printDiff string,
) Finding {
	return Finding{
		Reason:        reason,
		Date:          context.Timestamp.Format(dateFormat),
		Path:          blob.Path(),
		Branch:        context.Branch,
		CommitMessage: context.CommitMessage,
		CommitHash:    context.CommitHash,
		Diff:          blob.Patch,
		StringsFound:  stringsFound,
		PrintDiff:     printDiff,
	}
}
