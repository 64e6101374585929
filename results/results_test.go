package results_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/lager"
	"code.cloudfoundry.org/lager/lagertest"
	"github.com/onsi/gomega/gbytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"depthcharge/results"
	"depthcharge/scanners"
)

var finding = scanners.Finding{
	Reason:        "High Entropy",
	Date:          "2020-01-02 03:04:05",
	Path:          "config.yml",
	Branch:        "origin/master",
	CommitMessage: "add token",
	CommitHash:    "deadbeef",
	Diff:          "+token: abc\n",
	StringsFound:  []string{"abc"},
	PrintDiff:     "+token: abc\n",
}

var _ = Describe("Writer", func() {
	var (
		logger *lagertest.TestLogger
		dir    string
		writer *results.Writer
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("results")

		var err error
		dir, err = os.MkdirTemp("", "results-test")
		Expect(err).NotTo(HaveOccurred())

		writer = results.NewWriter(dir)
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("persists each finding as its own addressable JSON record", func() {
		location, err := writer.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Dir(location)).To(Equal(dir))

		record, err := os.ReadFile(location)
		Expect(err).NotTo(HaveOccurred())

		var restored scanners.Finding
		Expect(json.Unmarshal(record, &restored)).To(Succeed())
		Expect(restored).To(Equal(finding))
	})

	It("gives every record a unique location", func() {
		first, err := writer.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())

		second, err := writer.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).NotTo(Equal(second))
	})
})

var _ = Describe("Printer", func() {
	var logger *lagertest.TestLogger

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("results")
	})

	It("renders a human readable block", func() {
		out := gbytes.NewBuffer()
		printer := results.NewPrinter(out, false)

		location, err := printer.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())
		Expect(location).To(BeEmpty())

		Expect(out).To(gbytes.Say("Reason:"))
		Expect(out).To(gbytes.Say("High Entropy"))
		Expect(out).To(gbytes.Say("config.yml"))
	})

	It("renders one JSON document per line when asked", func() {
		out := gbytes.NewBuffer()
		printer := results.NewPrinter(out, true)

		_, err := printer.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())

		var restored scanners.Finding
		Expect(json.Unmarshal(out.Contents(), &restored)).To(Succeed())
		Expect(restored).To(Equal(finding))
	})
})

var _ = Describe("Tee", func() {
	var logger *lagertest.TestLogger

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("results")
	})

	It("fans out to every sink and returns the record location", func() {
		dir, err := os.MkdirTemp("", "results-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		out := gbytes.NewBuffer()
		tee := results.Tee(results.NewPrinter(out, true), results.NewWriter(dir))

		location, err := tee.Write(logger, finding)
		Expect(err).NotTo(HaveOccurred())

		Expect(location).To(HavePrefix(dir))
		Expect(out.Contents()).NotTo(BeEmpty())
	})

	It("keeps writing to later sinks when one fails", func() {
		dir, err := os.MkdirTemp("", "results-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		tee := results.Tee(failingSink{}, results.NewWriter(dir))

		location, err := tee.Write(logger, finding)
		Expect(err).To(MatchError(ContainSubstring("sink exploded")))
		Expect(location).NotTo(BeEmpty())
	})
})

type failingSink struct{}

func (failingSink) Write(lager.Logger, scanners.Finding) (string, error) {
	return "", errors.New("sink exploded")
}
