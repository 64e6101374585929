package entropy

import (
	"math"
	"regexp"
	"strings"
)

const Base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
const HexChars = "1234567890abcdefABCDEF"

const base64Threshold = 4.5
const hexThreshold = 3.0

// A candidate run must be strictly longer than this to be scored at all.
// Short incidental tokens (short hashes, identifiers) are never interesting.
const minRunLength = 20

// IgnoreMarker suppresses entropy scanning for the line it appears on.
const IgnoreMarker = "depthcharge:ignore"

// Shannon computes the Shannon entropy of data over the symbols of charset:
// -Σ p(c)·log2(p(c)) for each symbol present. The result is bounded by
// log2(len(charset)).
func Shannon(data string, charset string) float64 {
	if data == "" {
		return 0
	}

	var entropy float64
	for _, c := range charset {
		p := float64(strings.Count(data, string(c))) / float64(len(data))
		if p > 0 {
			entropy += -p * math.Log2(p)
		}
	}

	return entropy
}

// RunsOfCharset extracts the maximal contiguous runs of charset symbols in
// word that are strictly longer than threshold.
func RunsOfCharset(word string, charset string, threshold int) []string {
	var runs []string
	var letters strings.Builder

	for _, c := range word {
		if strings.ContainsRune(charset, c) {
			letters.WriteRune(c)
			continue
		}

		if letters.Len() > threshold {
			runs = append(runs, letters.String())
		}
		letters.Reset()
	}

	if letters.Len() > threshold {
		runs = append(runs, letters.String())
	}

	return runs
}

// Detector finds statistically anomalous strings in diff text. Lines carrying
// the ignore marker, or matching any of the configured exclusion patterns,
// are skipped wholesale.
type Detector struct {
	exclusions []*regexp.Regexp
}

func NewDetector(exclusions []*regexp.Regexp) *Detector {
	return &Detector{
		exclusions: exclusions,
	}
}

// Scan returns every qualifying high-entropy string in text, in the order
// encountered. An empty result means the text is unremarkable.
func (d *Detector) Scan(text string) []string {
	var found []string

	for _, line := range strings.Split(text, "\n") {
		if d.excluded(line) {
			continue
		}

		for _, word := range strings.Fields(line) {
			for _, run := range RunsOfCharset(word, Base64Chars, minRunLength) {
				if Shannon(run, Base64Chars) > base64Threshold {
					found = append(found, run)
				}
			}

			for _, run := range RunsOfCharset(word, HexChars, minRunLength) {
				if Shannon(run, HexChars) > hexThreshold {
					found = append(found, run)
				}
			}
		}
	}

	return found
}

func (d *Detector) excluded(line string) bool {
	if strings.Contains(line, IgnoreMarker) {
		return true
	}

	for _, exclusion := range d.exclusions {
		if exclusion.MatchString(line) {
			return true
		}
	}

	return false
}
