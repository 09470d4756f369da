// Package runner drives the isolated execution of each manifest entry and
// collects the resulting artifact references.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-orchestrator/container"
	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// ErrMissingImage indicates a test declared without the required image.
var ErrMissingImage = errors.New("test missing required 'image' parameter")

// Config holds configuration for creating a new runner.
type Config struct {
	Client          container.Client // isolated execution collaborator
	Log             log.Logger
	ReportsDir      string        // reports directory as seen by this process
	ReportsHostPath string        // reports directory as seen by the docker daemon
	TestTimeout     time.Duration // per-test bound; zero means unbounded
}

// Runner executes manifest entries one at a time. It owns no shared state
// beyond the reports directory convention: every test writes its own
// uniquely named artifact.
type Runner struct {
	client          container.Client
	log             log.Logger
	reportsDir      string
	reportsHostPath string
	testTimeout     time.Duration
	runID           string
	tracer          trace.Tracer
}

// NewRunner creates a new runner instance.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Client == nil {
		return nil, errors.New("container client is required")
	}
	if cfg.ReportsDir == "" {
		return nil, errors.New("reports directory is required")
	}
	if cfg.ReportsHostPath == "" {
		cfg.ReportsHostPath = cfg.ReportsDir
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Runner{
		client:          cfg.Client,
		log:             cfg.Log,
		reportsDir:      cfg.ReportsDir,
		reportsHostPath: cfg.ReportsHostPath,
		testTimeout:     cfg.TestTimeout,
		tracer:          otel.Tracer("orchestrator/runner"),
	}, nil
}

// RunID returns the identifier of the most recent run.
func (r *Runner) RunID() string {
	return r.runID
}

// RunAll executes every manifest entry sequentially in sorted name order.
// One test's failure never stops the remaining tests; every attempt yields
// exactly one ExecutionResult.
func (r *Runner) RunAll(ctx context.Context, m types.Manifest) []types.ExecutionResult {
	r.runID = uuid.New().String()
	ctx, span := r.tracer.Start(ctx, "run all tests")
	defer span.End()

	results := make([]types.ExecutionResult, 0, len(m))
	for _, name := range m.SortedNames() {
		spec := m[name]
		start := time.Now()
		artifact, err := r.RunTest(ctx, spec)
		result := types.ExecutionResult{
			Name:     name,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Status = types.TestStatusFail
			result.Err = err
			r.log.Error("Test failed", "test", name, "source", spec.Source, "err", err)
		} else {
			result.Status = types.TestStatusPass
			result.Artifact = artifact
		}
		metrics.RecordTestRun(r.runID, name, result.Status)
		results = append(results, result)
	}
	return results
}

// RunTest runs a single test in a container and returns the name of the
// artifact the test was expected to write. The artifact's presence is only
// checked diagnostically here; a missing artifact is the aggregator's
// concern.
func (r *Runner) RunTest(ctx context.Context, spec types.TestSpec) (string, error) {
	if spec.Image == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingImage, spec.Name)
	}

	ctx, span := r.tracer.Start(ctx, "run test "+spec.Name)
	defer span.End()

	r.log.Info("Running test", "test", spec.Name, "image", spec.Image)

	r.pullImage(ctx, spec.Image)

	env := ProjectEnv(spec)
	r.log.Debug("Container environment", "test", spec.Name, "env", env)
	r.log.Info("Mounting reports directory",
		"hostPath", r.reportsHostPath, "mountPoint", container.ReportsMountPoint)

	runCtx := ctx
	if r.testTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.testTimeout)
		defer cancel()
	}

	err := r.client.RunContainer(runCtx, container.RunRequest{
		Image:           spec.Image,
		Env:             env,
		ReportsHostPath: r.reportsHostPath,
	})
	if err != nil {
		var exitErr *container.ExitError
		if errors.As(err, &exitErr) {
			stderr := stripansi.Strip(exitErr.Stderr)
			return "", fmt.Errorf("container for test %s exited with code %d: %s",
				spec.Name, exitErr.ExitCode, stderr)
		}
		return "", fmt.Errorf("running container for test %s: %w", spec.Name, err)
	}
	r.log.Info("Container completed successfully", "test", spec.Name)

	artifact := spec.ArtifactName()
	r.checkArtifact(spec.Name, artifact)
	return artifact, nil
}

// pullImage makes a best-effort pull before each run. Failures are logged but
// never fatal: a locally cached image may still satisfy the run.
func (r *Runner) pullImage(ctx context.Context, image string) {
	r.log.Info("Pulling image", "image", image)
	err := r.client.PullImage(ctx, image)
	switch {
	case err == nil:
		r.log.Info("Successfully pulled image", "image", image)
	case errors.Is(err, container.ErrImageNotFound):
		r.log.Warn("Image not found in registry, will try local image", "image", image)
	default:
		r.log.Warn("Error pulling image", "image", image, "err", err)
	}
}

// checkArtifact logs whether the expected artifact showed up, listing the
// reports directory as a diagnostic when it did not.
func (r *Runner) checkArtifact(testName, artifact string) {
	path := filepath.Join(r.reportsDir, artifact)
	if _, err := os.Stat(path); err == nil {
		r.log.Info("Report file found", "test", testName, "artifact", artifact)
		return
	}

	r.log.Warn("Report file not found", "test", testName, "path", path)
	entries, err := filepath.Glob(filepath.Join(r.reportsDir, "*.xml"))
	if err != nil {
		r.log.Warn("Error listing reports directory", "dir", r.reportsDir, "err", err)
		return
	}
	if len(entries) == 0 {
		r.log.Warn("No XML files in reports directory", "dir", r.reportsDir)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Base(e))
	}
	r.log.Warn("Reports directory contents", "files", names)
}

// ProjectEnv renders a test spec's parameters into the flat container
// environment. The reserved source_file key surfaces as SPECIAL_SOURCE_FILE,
// a declared image key is dropped (it is the execution target, not a
// parameter), and everything else is namespaced under TEST_ to keep declared
// parameters from colliding with system variables.
func ProjectEnv(spec types.TestSpec) map[string]string {
	env := map[string]string{
		"TS_NAME": spec.Name,
	}
	for key, value := range spec.Config {
		switch key {
		case types.SourceFileKey:
			env["SPECIAL_SOURCE_FILE"] = value.String()
		case "image":
			// already consumed as the execution target
		default:
			env["TEST_"+strings.ToUpper(key)] = value.String()
		}
	}
	return env
}
