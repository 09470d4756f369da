// Package manifest discovers and merges YAML test declarations into one
// collision-resolved manifest for a run.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

var (
	// ErrConfigNotFound indicates a config file that does not exist.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrConfigParse indicates a config file that is not valid YAML.
	ErrConfigParse = errors.New("config file is not valid YAML")
	// ErrNoConfigsFound indicates a config root with no YAML files at all.
	ErrNoConfigsFound = errors.New("no config files found")
)

// Source is one loaded configuration document. Its test declarations keep
// the order they were written in; that order drives collision counting.
type Source struct {
	Path  string
	Tests []Declaration
}

// Declaration is one raw test entry as written in a config file.
type Declaration struct {
	Name   string
	Image  string
	Config map[string]types.ParamValue
}

// document is the top-level shape of a config file. The tests section is
// kept as a raw node so declaration order survives decoding.
type document struct {
	Tests yaml.Node `yaml:"tests"`
}

type declarationBody struct {
	Image  string                      `yaml:"image"`
	Config map[string]types.ParamValue `yaml:"config"`
}

// Loader merges config sources into a manifest.
type Loader struct {
	log log.Logger
}

// NewLoader creates a manifest loader. A nil logger falls back to the root
// logger.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.Root()
	}
	return &Loader{log: logger}
}

// Load reads and parses a single config file. Documents without a tests
// section load successfully with zero declarations.
func (l *Loader) Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	src := &Source{Path: path}
	if doc.Tests.Kind != yaml.MappingNode {
		// No recognized tests section; the caller skips this source.
		return src, nil
	}

	// A YAML mapping node stores keys and values as alternating children.
	for i := 0; i+1 < len(doc.Tests.Content); i += 2 {
		keyNode := doc.Tests.Content[i]
		valNode := doc.Tests.Content[i+1]

		var body declarationBody
		if err := valNode.Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: %s: test %q: %v", ErrConfigParse, path, keyNode.Value, err)
		}
		src.Tests = append(src.Tests, Declaration{
			Name:   keyNode.Value,
			Image:  body.Image,
			Config: body.Config,
		})
	}

	l.log.Info("Loaded configuration", "path", path, "tests", len(src.Tests))
	return src, nil
}

// LoadAll recursively discovers every *.yaml / *.yml file under rootDir in
// lexicographic path order and merges their test declarations into one
// manifest. Duplicate test names are renamed name-(k+1) with a warning, never
// dropped. Every merged entry is tagged with its originating file under the
// reserved source_file config key.
func (l *Loader) LoadAll(rootDir string) (types.Manifest, error) {
	paths, err := discoverConfigFiles(rootDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no YAML files under %s", ErrNoConfigsFound, rootDir)
	}

	manifest := make(types.Manifest)
	nameCounts := make(map[string]int)

	for _, path := range paths {
		src, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		if len(src.Tests) == 0 {
			continue
		}

		for _, decl := range src.Tests {
			name := decl.Name

			count := nameCounts[decl.Name]
			if count > 0 {
				name = fmt.Sprintf("%s-%d", decl.Name, count+1)
				l.log.Warn("Duplicate test name, renaming",
					"name", decl.Name, "renamed", name, "path", path)
			}
			nameCounts[decl.Name] = count + 1

			cfg := make(map[string]types.ParamValue, len(decl.Config)+1)
			for k, v := range decl.Config {
				cfg[k] = v
			}
			cfg[types.SourceFileKey] = types.StringParam(path)

			manifest[name] = types.TestSpec{
				Name:   name,
				Image:  decl.Image,
				Config: cfg,
				Source: path,
			}
		}

		l.log.Info("Processed tests", "path", path)
	}

	return manifest, nil
}

// discoverConfigFiles walks rootDir collecting YAML files, sorted by path.
func discoverConfigFiles(rootDir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfigsFound, rootDir)
		}
		return nil, fmt.Errorf("discovering config files under %s: %w", rootDir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
