package reporting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	c := NewCombiner(log.New(), dir)

	pathA := writeArtifact(t, dir, "alpha_report.xml", suitesDoc)
	pathB := writeArtifact(t, dir, "beta_report.xml", bareSuiteDoc)

	summary, err := c.Combine([]string{"alpha_report.xml", "beta_report.xml"})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Tests)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Skipped)
	assert.InDelta(t, 3.75, summary.Time, 1e-9)
	assert.Equal(t, 2, summary.Merged)
	assert.Equal(t, 0, summary.Skips)

	// Merged artifacts are consumed.
	assert.NoFileExists(t, pathA)
	assert.NoFileExists(t, pathB)

	// Combined report written and parseable.
	data, err := os.ReadFile(filepath.Join(dir, CombinedReportName))
	require.NoError(t, err)
	doc, err := ParseReport(data)
	require.NoError(t, err)
	assert.Len(t, doc.Suites, 2)
	assert.Equal(t, 5, doc.Tests)
}

func TestCombineSkipsMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	c := NewCombiner(log.New(), dir)

	writeArtifact(t, dir, "alpha_report.xml", suitesDoc)

	summary, err := c.Combine([]string{"alpha_report.xml", "ghost_report.xml"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Skips)
	assert.Equal(t, 3, summary.Tests)
}

func TestCombineSkipsUnparseableAndLeavesThem(t *testing.T) {
	dir := t.TempDir()
	c := NewCombiner(log.New(), dir)

	writeArtifact(t, dir, "alpha_report.xml", suitesDoc)
	badPath := writeArtifact(t, dir, "bad_report.xml", "this is not xml")

	summary, err := c.Combine([]string{"alpha_report.xml", "bad_report.xml"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Skips)
	// Only successfully merged artifacts are deleted.
	assert.FileExists(t, badPath)
}

func TestCombineIsConsuming(t *testing.T) {
	dir := t.TempDir()
	c := NewCombiner(log.New(), dir)

	writeArtifact(t, dir, "alpha_report.xml", suitesDoc)

	first, err := c.Combine([]string{"alpha_report.xml"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Tests)

	// Second pass over the same names finds nothing: aggregation is a
	// one-shot operation.
	second, err := c.Combine([]string{"alpha_report.xml"})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Tests)
	assert.Equal(t, 0, second.Merged)
	assert.Equal(t, 1, second.Skips)
}

func TestCombineEmptyListStillWritesReport(t *testing.T) {
	dir := t.TempDir()
	c := NewCombiner(log.New(), dir)

	summary, err := c.Combine(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Tests)
	assert.FileExists(t, filepath.Join(dir, CombinedReportName))
}
