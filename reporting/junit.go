package reporting

import (
	"encoding/xml"
	"fmt"
)

// JUnit XML schema, as produced by the common test-report tooling: a
// testsuites root holding testsuite elements, each holding testcase elements
// with optional failure/error/skipped children.

type TestSuites struct {
	XMLName  xml.Name    `xml:"testsuites"`
	Name     string      `xml:"name,attr,omitempty"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     float64     `xml:"time,attr"`
	Suites   []TestSuite `xml:"testsuite"`
}

type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      float64    `xml:"time,attr"`
	Timestamp string     `xml:"timestamp,attr,omitempty"`
	Hostname  string     `xml:"hostname,attr,omitempty"`
	Cases     []TestCase `xml:"testcase"`
}

type TestCase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	Classname string   `xml:"classname,attr,omitempty"`
	Time      float64  `xml:"time,attr"`
	Failure   *Result  `xml:"failure,omitempty"`
	Error     *Result  `xml:"error,omitempty"`
	Skipped   *Result  `xml:"skipped,omitempty"`
	SystemOut string   `xml:"system-out,omitempty"`
	SystemErr string   `xml:"system-err,omitempty"`
}

// Result is the body of a failure, error or skipped element.
type Result struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// AddSuite appends a suite and folds its counters into the document totals.
func (ts *TestSuites) AddSuite(s TestSuite) {
	ts.Suites = append(ts.Suites, s)
	ts.Tests += s.Tests
	ts.Failures += s.Failures
	ts.Errors += s.Errors
	ts.Skipped += s.Skipped
	ts.Time += s.Time
}

// ParseReport decodes a JUnit XML document. Both a <testsuites> root and a
// bare single <testsuite> root are accepted; the latter is wrapped into a
// one-suite document.
func ParseReport(data []byte) (*TestSuites, error) {
	var doc TestSuites
	if err := xml.Unmarshal(data, &doc); err == nil {
		// Some producers leave document-level counters unset; recompute
		// them from the suites so aggregation stays accurate.
		doc.recount()
		return &doc, nil
	}

	var suite TestSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing JUnit XML: %w", err)
	}
	doc = TestSuites{}
	doc.AddSuite(suite)
	return &doc, nil
}

func (ts *TestSuites) recount() {
	ts.Tests, ts.Failures, ts.Errors, ts.Skipped, ts.Time = 0, 0, 0, 0, 0
	for _, s := range ts.Suites {
		ts.Tests += s.Tests
		ts.Failures += s.Failures
		ts.Errors += s.Errors
		ts.Skipped += s.Skipped
		ts.Time += s.Time
	}
}

// Marshal renders the document pretty-printed with an XML header.
func (ts *TestSuites) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JUnit XML: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
