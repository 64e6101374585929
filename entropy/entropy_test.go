package entropy_test

import (
	"math"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"depthcharge/entropy"
)

const base64Secret = "ZWVTjPQSdhwRgl204Hc51YCsritMIzn8B=/p9UyeX7xu6KkAGqfm3FJ+oObLGnNhAib8H9jl8xKnLdXjJPgYsq"
const hexSecret = "b3A0a1FDfe86dcCE945B72"

var _ = Describe("Shannon", func() {
	It("is zero for the empty string", func() {
		Expect(entropy.Shannon("", entropy.Base64Chars)).To(BeZero())
	})

	It("is zero for a single repeated symbol", func() {
		Expect(entropy.Shannon("aaaaaaaaaa", entropy.HexChars)).To(BeZero())
	})

	It("never exceeds the log2 of the alphabet size", func() {
		inputs := []string{base64Secret, hexSecret, "abc123", strings.Repeat("a0", 50)}

		for _, input := range inputs {
			Expect(entropy.Shannon(input, entropy.Base64Chars)).To(BeNumerically(">=", 0))
			Expect(entropy.Shannon(input, entropy.Base64Chars)).To(BeNumerically("<=", math.Log2(65)))
			Expect(entropy.Shannon(input, entropy.HexChars)).To(BeNumerically("<=", math.Log2(22)))
		}
	})

	It("scores random-looking base64 text above the base64 threshold", func() {
		Expect(entropy.Shannon(base64Secret, entropy.Base64Chars)).To(BeNumerically(">", 4.5))
	})

	It("scores random-looking hex text above the hex threshold", func() {
		Expect(entropy.Shannon(hexSecret, entropy.HexChars)).To(BeNumerically(">", 3.0))
	})
})

var _ = Describe("RunsOfCharset", func() {
	It("extracts maximal runs longer than the threshold", func() {
		word := "key='" + base64Secret + "'"
		runs := entropy.RunsOfCharset(word, entropy.Base64Chars, 20)
		Expect(runs).To(ConsistOf(base64Secret))
	})

	It("ignores runs at or below the threshold", func() {
		Expect(entropy.RunsOfCharset("deadbeef", entropy.HexChars, 20)).To(BeEmpty())
		Expect(entropy.RunsOfCharset(strings.Repeat("a", 20), entropy.HexChars, 20)).To(BeEmpty())
	})

	It("splits runs on characters outside the charset", func() {
		word := hexSecret + "!" + hexSecret
		runs := entropy.RunsOfCharset(word, entropy.HexChars, 20)
		Expect(runs).To(Equal([]string{hexSecret, hexSecret}))
	})
})

var _ = Describe("Detector", func() {
	var detector *entropy.Detector

	BeforeEach(func() {
		detector = entropy.NewDetector(nil)
	})

	It("finds high entropy base64 strings", func() {
		diff := "+secret = \"" + base64Secret + "\"\n"
		Expect(detector.Scan(diff)).To(ContainElement(base64Secret))
	})

	It("finds high entropy hex strings", func() {
		diff := "+checksum := \"" + hexSecret + "\"\n"
		Expect(detector.Scan(diff)).To(ContainElement(hexSecret))
	})

	It("does not flag ordinary code", func() {
		diff := "+func NewDetector(exclusions []*regexp.Regexp) *Detector {\n"
		Expect(detector.Scan(diff)).To(BeEmpty())
	})

	It("never reports a run of twenty characters or fewer", func() {
		diff := "+short = \"1234567890abcdef0912\"\n"
		Expect(detector.Scan(diff)).To(BeEmpty())
	})

	It("skips lines carrying the ignore marker", func() {
		diff := "+secret = \"" + base64Secret + "\" # " + entropy.IgnoreMarker + "\n"
		Expect(detector.Scan(diff)).To(BeEmpty())
	})

	It("skips lines matching an exclusion pattern", func() {
		detector = entropy.NewDetector([]*regexp.Regexp{
			regexp.MustCompile(`integrity sha512`),
		})

		diff := "+integrity sha512-" + base64Secret + "\n" +
			"+secret = \"" + base64Secret + "\"\n"

		Expect(detector.Scan(diff)).To(Equal([]string{base64Secret}))
	})
})
