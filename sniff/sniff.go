package sniff

import (
	"sort"
	"strings"
	"unicode/utf8"

	"code.cloudfoundry.org/lager"
	"github.com/hashicorp/go-multierror"

	"depthcharge/entropy"
	"depthcharge/pathfilter"
	"depthcharge/scanners"
	"depthcharge/sniff/patterns"
)

const entropyReason = "High Entropy"

//go:generate counterfeiter . Sniffer

// Sniffer runs the configured detectors over every scannable file of one
// diff, handing each finding to the supplied handler as it is produced.
type Sniffer interface {
	Sniff(lager.Logger, scanners.CommitContext, []scanners.DiffBlob, FindingHandlerFunc) error
}

type FindingHandlerFunc func(lager.Logger, scanners.Finding) error

type sniffer struct {
	entropyDetector *entropy.Detector
	patternSet      patterns.Set
	filter          *pathfilter.Filter
}

// NewSniffer builds a diff worker. A nil entropy detector disables entropy
// scanning and an empty pattern set disables signature scanning; a nil filter
// scans every path.
func NewSniffer(
	entropyDetector *entropy.Detector,
	patternSet patterns.Set,
	filter *pathfilter.Filter,
) Sniffer {
	if filter == nil {
		filter = pathfilter.New(nil, nil)
	}

	return &sniffer{
		entropyDetector: entropyDetector,
		patternSet:      patternSet,
		filter:          filter,
	}
}

// NewDefaultSniffer scans with both detectors, the curated signature set, and
// no path restrictions.
func NewDefaultSniffer() Sniffer {
	return NewSniffer(entropy.NewDetector(nil), patterns.Default(), nil)
}

func (s *sniffer) Sniff(
	logger lager.Logger,
	context scanners.CommitContext,
	blobs []scanners.DiffBlob,
	handleFinding FindingHandlerFunc,
) error {
	logger = logger.Session("sniff", lager.Data{
		"branch": context.Branch,
		"commit": context.CommitHash,
	})
	logger.Debug("starting")
	defer logger.Debug("done")

	var result error

	for _, blob := range blobs {
		text := decode(blob.Patch)

		if blob.Binary || strings.HasPrefix(text, "Binary files") {
			continue
		}

		if !s.filter.Include(blob.Path()) {
			continue
		}

		for _, finding := range s.findings(context, blob, text) {
			if err := handleFinding(logger, finding); err != nil {
				logger.Error("failed", err)
				result = multierror.Append(result, err)
			}
		}
	}

	return result
}

func (s *sniffer) findings(
	context scanners.CommitContext,
	blob scanners.DiffBlob,
	text string,
) []scanners.Finding {
	// the finding carries the decoded text, so diff and print_diff agree
	// even when the raw patch was not valid UTF-8
	blob.Patch = text

	var findings []scanners.Finding

	if s.entropyDetector != nil {
		if found := s.entropyDetector.Scan(text); len(found) > 0 {
			printDiff := highlight(text, spansOfStrings(text, found))
			findings = append(findings, scanners.NewFinding(entropyReason, context, blob, found, printDiff))
		}
	}

	if len(s.patternSet) > 0 {
		matched := s.patternSet.FindAll(text)

		names := make([]string, 0, len(matched))
		for name := range matched {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			var found []string
			var matchSpans []span
			for _, match := range matched[name] {
				found = append(found, text[match.Start:match.End])
				matchSpans = append(matchSpans, span{start: match.Start, end: match.End})
			}

			printDiff := highlight(text, matchSpans)
			findings = append(findings, scanners.NewFinding(name, context, blob, found, printDiff))
		}
	}

	return findings
}

// decode replaces invalid byte sequences so that undecodable content can
// still be scanned.
func decode(patch string) string {
	return strings.ToValidUTF8(patch, string(utf8.RuneError))
}
