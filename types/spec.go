package types

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceFileKey is the reserved config key under which the manifest loader
// records the originating config file of each test. The loader always
// overwrites a declared value for this key; provenance wins.
const SourceFileKey = "source_file"

// TestStatus represents the outcome of one containerized test execution
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
)

// ParamKind enumerates the value kinds a test config parameter may hold.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt
	ParamFloat
	ParamBool
)

// ParamValue is a scalar config parameter: string, integer, float or bool.
// Test declarations are YAML so parameter values arrive dynamically typed;
// holding them as an explicit variant keeps the environment projection total
// and side-effect-free.
type ParamValue struct {
	Kind  ParamKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

func StringParam(s string) ParamValue { return ParamValue{Kind: ParamString, Str: s} }
func IntParam(i int64) ParamValue     { return ParamValue{Kind: ParamInt, Int: i} }
func FloatParam(f float64) ParamValue { return ParamValue{Kind: ParamFloat, Float: f} }
func BoolParam(b bool) ParamValue     { return ParamValue{Kind: ParamBool, Bool: b} }

// String renders the parameter the way it is projected into the container
// environment: integers in decimal, floats in their shortest form, booleans
// as "true"/"false", strings verbatim.
func (v ParamValue) String() string {
	switch v.Kind {
	case ParamInt:
		return strconv.FormatInt(v.Int, 10)
	case ParamFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ParamBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// UnmarshalYAML decodes a scalar YAML node into the matching variant kind.
// Mappings and sequences are rejected; config parameters must be scalars.
func (v *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("config parameter must be a scalar value, got %s", nodeKindName(node.Kind))
	}
	switch node.Tag {
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid integer parameter %q: %w", node.Value, err)
		}
		*v = IntParam(i)
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid float parameter %q: %w", node.Value, err)
		}
		*v = FloatParam(f)
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return fmt.Errorf("invalid boolean parameter %q: %w", node.Value, err)
		}
		*v = BoolParam(b)
	default:
		*v = StringParam(node.Value)
	}
	return nil
}

// MarshalYAML renders the variant back to its native YAML scalar.
func (v ParamValue) MarshalYAML() (interface{}, error) {
	switch v.Kind {
	case ParamInt:
		return v.Int, nil
	case ParamFloat:
		return v.Float, nil
	case ParamBool:
		return v.Bool, nil
	default:
		return v.Str, nil
	}
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// TestSpec is one named unit of work: a container image to run plus its
// declared parameters. Name is unique within a manifest after collision
// resolution.
type TestSpec struct {
	Name   string
	Image  string
	Config map[string]ParamValue
	Source string // config file this spec was declared in
}

// ArtifactName returns the report file the test is expected to write into
// the shared reports directory.
func (s TestSpec) ArtifactName() string {
	return s.Name + "_report.xml"
}

// Manifest is the fully merged, collision-resolved mapping of test name to
// test spec for one run. It is built once and read-only thereafter; its
// iteration order is not meaningful.
type Manifest map[string]TestSpec

// SortedNames returns the manifest's test names in lexicographic order, for
// deterministic execution and logging.
func (m Manifest) SortedNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecutionResult is the outcome of attempting one test: either the name of
// the artifact the test was expected to produce, or the error that stopped
// the container from running to completion.
type ExecutionResult struct {
	Name     string
	Status   TestStatus
	Artifact string
	Err      error
	Duration time.Duration
}
