package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/lager"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mgutz/ansi"

	"depthcharge/scanners"
	"depthcharge/trawler"
)

var label = ansi.ColorFunc("green+b")

// Writer persists each finding as an individually addressable JSON record
// inside its directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) Write(logger lager.Logger, finding scanners.Finding) (string, error) {
	record, err := json.Marshal(finding)
	if err != nil {
		return "", err
	}

	location := filepath.Join(w.dir, uuid.NewString())
	if err := os.WriteFile(location, record, 0644); err != nil {
		logger.Error("failed-to-write-record", err, lager.Data{"location": location})
		return "", err
	}

	return location, nil
}

// Printer renders each finding to its writer as it is produced, either as a
// colorized human-readable block or as one JSON document per line.
type Printer struct {
	out  io.Writer
	json bool
}

func NewPrinter(out io.Writer, asJSON bool) *Printer {
	return &Printer{out: out, json: asJSON}
}

func (p *Printer) Write(logger lager.Logger, finding scanners.Finding) (string, error) {
	if p.json {
		record, err := json.Marshal(finding)
		if err != nil {
			return "", err
		}

		fmt.Fprintln(p.out, string(record))
		return "", nil
	}

	fmt.Fprintln(p.out, "~~~~~~~~~~~~~~~~~~~~~")
	fmt.Fprintln(p.out, label("Reason:"), finding.Reason)
	fmt.Fprintln(p.out, label("Date:"), finding.Date)
	fmt.Fprintln(p.out, label("Hash:"), finding.CommitHash)
	fmt.Fprintln(p.out, label("Filepath:"), finding.Path)
	fmt.Fprintln(p.out, label("Branch:"), finding.Branch)
	fmt.Fprintln(p.out, label("Commit:"), finding.CommitMessage)
	fmt.Fprintln(p.out, finding.PrintDiff)
	fmt.Fprintln(p.out, "~~~~~~~~~~~~~~~~~~~~~")

	return "", nil
}

// Tee fans each finding out to every sink and returns the first non-empty
// record location.
func Tee(sinks ...trawler.Sink) trawler.Sink {
	return teeSink(sinks)
}

type teeSink []trawler.Sink

func (t teeSink) Write(logger lager.Logger, finding scanners.Finding) (string, error) {
	var location string
	var result error

	for _, sink := range t {
		loc, err := sink.Write(logger, finding)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		if location == "" {
			location = loc
		}
	}

	return location, result
}
