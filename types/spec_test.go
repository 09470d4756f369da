package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParamValueUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want ParamValue
	}{
		{name: "string", yaml: `value: hello`, want: StringParam("hello")},
		{name: "quoted number stays string", yaml: `value: "3"`, want: StringParam("3")},
		{name: "integer", yaml: `value: 3`, want: IntParam(3)},
		{name: "negative integer", yaml: `value: -17`, want: IntParam(-17)},
		{name: "float", yaml: `value: 1.5`, want: FloatParam(1.5)},
		{name: "bool true", yaml: `value: true`, want: BoolParam(true)},
		{name: "bool false", yaml: `value: false`, want: BoolParam(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Value ParamValue `yaml:"value"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &out))
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestParamValueRejectsNonScalar(t *testing.T) {
	var out struct {
		Value ParamValue `yaml:"value"`
	}
	err := yaml.Unmarshal([]byte("value:\n  nested: true"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scalar")

	err = yaml.Unmarshal([]byte("value:\n  - a\n  - b"), &out)
	require.Error(t, err)
}

func TestParamValueString(t *testing.T) {
	assert.Equal(t, "hello", StringParam("hello").String())
	assert.Equal(t, "3", IntParam(3).String())
	assert.Equal(t, "-17", IntParam(-17).String())
	assert.Equal(t, "1.5", FloatParam(1.5).String())
	assert.Equal(t, "true", BoolParam(true).String())
	assert.Equal(t, "false", BoolParam(false).String())
}

func TestArtifactName(t *testing.T) {
	spec := TestSpec{Name: "smoke"}
	assert.Equal(t, "smoke_report.xml", spec.ArtifactName())
}

func TestManifestSortedNames(t *testing.T) {
	m := Manifest{
		"c": {Name: "c"},
		"a": {Name: "a"},
		"b": {Name: "b"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.SortedNames())
	assert.Empty(t, Manifest{}.SortedNames())
}
