package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	loader := NewLoader(log.New())
	tmpDir := t.TempDir()

	t.Run("valid config", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "valid.yaml", `
tests:
  smoke:
    image: alpine:3.20
    config:
      retries: 3
  integration:
    image: golang:1.22
`)
		src, err := loader.Load(path)
		require.NoError(t, err)
		require.Len(t, src.Tests, 2)
		// Declared order survives decoding.
		assert.Equal(t, "smoke", src.Tests[0].Name)
		assert.Equal(t, "alpine:3.20", src.Tests[0].Image)
		assert.Equal(t, types.IntParam(3), src.Tests[0].Config["retries"])
		assert.Equal(t, "integration", src.Tests[1].Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(filepath.Join(tmpDir, "nope.yaml"))
		require.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "broken.yaml", "tests: [unclosed")
		_, err := loader.Load(path)
		require.ErrorIs(t, err, ErrConfigParse)
	})

	t.Run("no tests section", func(t *testing.T) {
		path := writeConfig(t, tmpDir, "other.yaml", "something: else")
		src, err := loader.Load(path)
		require.NoError(t, err)
		assert.Empty(t, src.Tests)
	})
}

func TestLoadAll(t *testing.T) {
	loader := NewLoader(log.New())

	t.Run("merges sources recursively", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "a.yaml", `
tests:
  smoke:
    image: alpine:3.20
`)
		writeConfig(t, dir, "sub/b.yml", `
tests:
  integration:
    image: golang:1.22
`)
		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		require.Len(t, m, 2)
		assert.Contains(t, m, "smoke")
		assert.Contains(t, m, "integration")
	})

	t.Run("duplicate names are renamed, never dropped", func(t *testing.T) {
		dir := t.TempDir()
		pathA := writeConfig(t, dir, "a.yaml", `
tests:
  smoke:
    image: alpine:3.20
`)
		pathB := writeConfig(t, dir, "b.yaml", `
tests:
  smoke:
    image: busybox:1.36
`)
		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		require.Len(t, m, 2)

		// a.yaml sorts first, so it keeps the plain name.
		require.Contains(t, m, "smoke")
		require.Contains(t, m, "smoke-2")
		assert.Equal(t, "alpine:3.20", m["smoke"].Image)
		assert.Equal(t, pathA, m["smoke"].Source)
		assert.Equal(t, "busybox:1.36", m["smoke-2"].Image)
		assert.Equal(t, pathB, m["smoke-2"].Source)

		// Renamed specs see their new name, not the declared one.
		assert.Equal(t, "smoke-2", m["smoke-2"].Name)
	})

	t.Run("triple collision counts up", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "a.yaml", "tests:\n  smoke:\n    image: a\n")
		writeConfig(t, dir, "b.yaml", "tests:\n  smoke:\n    image: b\n")
		writeConfig(t, dir, "c.yaml", "tests:\n  smoke:\n    image: c\n")

		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		require.Len(t, m, 3)
		assert.Equal(t, "a", m["smoke"].Image)
		assert.Equal(t, "b", m["smoke-2"].Image)
		assert.Equal(t, "c", m["smoke-3"].Image)
	})

	t.Run("provenance is injected and wins", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "a.yaml", `
tests:
  smoke:
    image: alpine:3.20
    config:
      source_file: declared-by-hand.yaml
      retries: 3
`)
		m, err := loader.LoadAll(dir)
		require.NoError(t, err)

		cfg := m["smoke"].Config
		assert.Equal(t, types.StringParam(path), cfg[types.SourceFileKey])
		assert.Equal(t, types.IntParam(3), cfg["retries"])
	})

	t.Run("config created when absent", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "a.yaml", "tests:\n  smoke:\n    image: alpine\n")

		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		require.NotNil(t, m["smoke"].Config)
		assert.Equal(t, types.StringParam(path), m["smoke"].Config[types.SourceFileKey])
	})

	t.Run("sources without tests are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "a.yaml", "tests:\n  smoke:\n    image: alpine\n")
		writeConfig(t, dir, "notes.yaml", "something: else")

		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		assert.Len(t, m, 1)
	})

	t.Run("no yaml files", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "readme.txt", "not yaml")

		_, err := loader.LoadAll(dir)
		require.ErrorIs(t, err, ErrNoConfigsFound)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := loader.LoadAll(filepath.Join(t.TempDir(), "missing"))
		require.ErrorIs(t, err, ErrNoConfigsFound)
	})

	t.Run("count equals sum of declarations", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "a.yaml", "tests:\n  one:\n    image: a\n  two:\n    image: b\n")
		writeConfig(t, dir, "b.yaml", "tests:\n  two:\n    image: c\n  three:\n    image: d\n")

		m, err := loader.LoadAll(dir)
		require.NoError(t, err)
		assert.Len(t, m, 4)
	})
}
