package pathfilter

import "regexp"

// Filter decides whether a changed file's path should be scanned. A non-empty
// inclusion list is a whitelist: paths matching none of the inclusions are
// rejected before the exclusions are consulted. With no inclusions, the
// exclusion list alone governs, and with neither every path is accepted.
type Filter struct {
	inclusions []*regexp.Regexp
	exclusions []*regexp.Regexp
}

func New(inclusions, exclusions []*regexp.Regexp) *Filter {
	return &Filter{
		inclusions: inclusions,
		exclusions: exclusions,
	}
}

func (f *Filter) Include(path string) bool {
	if len(f.inclusions) > 0 && !anyMatch(f.inclusions, path) {
		return false
	}

	return !anyMatch(f.exclusions, path)
}

func anyMatch(patterns []*regexp.Regexp, path string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(path) {
			return true
		}
	}

	return false
}
