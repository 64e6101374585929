package config_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"depthcharge/config"
)

var _ = Describe("LoadConfig", func() {
	It("loads every knob from YAML", func() {
		c, err := config.LoadConfig([]byte(`---
json: true
regex: true
entropy: false
rules_file: rules.json
since_commit: abc123
max_depth: 50
branch: release
include_paths_file: include.txt
exclude_paths_file: exclude.txt
entropy_exclude_file: noise.txt
repo_path: /tmp/repo
cleanup: true
`))
		Expect(err).NotTo(HaveOccurred())

		Expect(c.JSON).To(BeTrue())
		Expect(c.Regex).To(BeTrue())
		Expect(c.EntropyEnabled()).To(BeFalse())
		Expect(c.RulesFile).To(Equal("rules.json"))
		Expect(c.SinceCommit).To(Equal("abc123"))
		Expect(c.MaxDepth).To(Equal(50))
		Expect(c.Branch).To(Equal("release"))
		Expect(c.IncludePathsFile).To(Equal("include.txt"))
		Expect(c.ExcludePathsFile).To(Equal("exclude.txt"))
		Expect(c.EntropyExcludeFile).To(Equal("noise.txt"))
		Expect(c.RepoPath).To(Equal("/tmp/repo"))
		Expect(c.Cleanup).To(BeTrue())
	})

	It("defaults entropy detection to on", func() {
		c, err := config.LoadConfig([]byte(`branch: main`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.EntropyEnabled()).To(BeTrue())
	})

	It("rejects malformed YAML", func() {
		_, err := config.LoadConfig([]byte(`{`))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseBool", func() {
	It("accepts the usual spellings", func() {
		for _, value := range []string{"", "yes", "TRUE", "t", "y", "1"} {
			Expect(config.ParseBool(value)).To(BeTrue(), value)
		}
		for _, value := range []string{"no", "False", "f", "N", "0"} {
			Expect(config.ParseBool(value)).To(BeFalse(), value)
		}
	})

	It("rejects anything else", func() {
		_, err := config.ParseBool("maybe")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("CompilePatternLines", func() {
	It("compiles one pattern per line, skipping comments and blanks", func() {
		patterns, err := config.CompilePatternLines(strings.NewReader(`
# vendored code
^vendor/

\.lock$
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(patterns).To(HaveLen(2))
		Expect(patterns[0].MatchString("vendor/lib.go")).To(BeTrue())
		Expect(patterns[1].MatchString("Gemfile.lock")).To(BeTrue())
	})

	It("surfaces an invalid pattern as a configuration error", func() {
		_, err := config.CompilePatternLines(strings.NewReader("[\n"))
		Expect(err).To(MatchError(ContainSubstring(`pattern "["`)))
	})
})

var _ = Describe("CompilePatternFile", func() {
	It("yields nothing for an empty path", func() {
		patterns, err := config.CompilePatternFile("")
		Expect(err).NotTo(HaveOccurred())
		Expect(patterns).To(BeEmpty())
	})

	It("errors for an unreadable file", func() {
		_, err := config.CompilePatternFile("/no/such/file")
		Expect(err).To(HaveOccurred())
	})
})
