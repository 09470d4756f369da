// Package reporting aggregates per-test JUnit XML artifacts into one
// combined report with summary counters.
package reporting

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
)

// CombinedReportName is the fixed name of the aggregate report written into
// the reports directory.
const CombinedReportName = "combined_report.xml"

var (
	// ErrArtifactMissing indicates an expected artifact file that is absent.
	ErrArtifactMissing = errors.New("artifact file not found")
	// ErrArtifactParse indicates an artifact that is not valid JUnit XML.
	ErrArtifactParse = errors.New("artifact is not valid JUnit XML")
)

// Summary carries the aggregate counters of one combined report.
type Summary struct {
	Tests    int
	Failures int
	Errors   int
	Skipped  int
	Time     float64

	Merged int // artifacts merged into the report
	Skips  int // artifacts skipped (missing or unparseable)
	Path   string
}

func (s *Summary) String() string {
	return fmt.Sprintf("Summary: %d tests, %d failures, %d errors, %d skipped, %.3fs",
		s.Tests, s.Failures, s.Errors, s.Skipped, s.Time)
}

// Combiner merges test artifacts from the reports directory. Combining is a
// consuming, one-shot operation: merged artifacts are deleted, so running it
// twice over the same names yields an empty report.
type Combiner struct {
	log        log.Logger
	reportsDir string
}

// NewCombiner creates a combiner over the given reports directory.
func NewCombiner(logger log.Logger, reportsDir string) *Combiner {
	if logger == nil {
		logger = log.Root()
	}
	return &Combiner{log: logger, reportsDir: reportsDir}
}

// Combine merges the named artifacts into one combined report, deletes each
// successfully merged artifact and writes the result. Missing or unparseable
// artifacts are logged and skipped; they never abort the aggregation.
func (c *Combiner) Combine(artifactNames []string) (*Summary, error) {
	c.log.Info("Combining reports", "count", len(artifactNames))

	combined := &TestSuites{}
	summary := &Summary{}

	for _, name := range artifactNames {
		if err := c.mergeOne(combined, name); err != nil {
			switch {
			case errors.Is(err, ErrArtifactMissing):
				c.log.Warn("Report file not found, skipping", "artifact", name)
			case errors.Is(err, ErrArtifactParse):
				c.log.Warn("Error parsing report, skipping", "artifact", name, "err", err)
			default:
				c.log.Warn("Error processing report, skipping", "artifact", name, "err", err)
			}
			summary.Skips++
			continue
		}
		summary.Merged++
	}

	out := filepath.Join(c.reportsDir, CombinedReportName)
	data, err := combined.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing combined report: %w", err)
	}

	summary.Tests = combined.Tests
	summary.Failures = combined.Failures
	summary.Errors = combined.Errors
	summary.Skipped = combined.Skipped
	summary.Time = combined.Time
	summary.Path = out

	c.log.Info("Combined report saved", "path", out)
	c.log.Info(summary.String())
	return summary, nil
}

// mergeOne folds a single artifact into the accumulator and deletes the
// backing file. Only files that merged successfully are deleted.
func (c *Combiner) mergeOne(combined *TestSuites, name string) error {
	path := filepath.Join(c.reportsDir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("reading artifact %s: %w", path, err)
	}

	doc, err := ParseReport(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArtifactParse, name, err)
	}

	for _, suite := range doc.Suites {
		combined.AddSuite(suite)
	}
	c.log.Info("Merged report", "artifact", name, "suites", len(doc.Suites))

	if err := os.Remove(path); err != nil {
		c.log.Warn("Failed to delete merged artifact", "artifact", name, "err", err)
		return nil
	}
	c.log.Info("Deleted report", "artifact", name)
	return nil
}
