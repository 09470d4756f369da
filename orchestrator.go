// Package orchestrator runs a declared set of test suites, each isolated in
// its own container, and produces one consolidated JUnit XML report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-orchestrator/container"
	"github.com/ethereum-optimism/infra/op-orchestrator/exitcodes"
	"github.com/ethereum-optimism/infra/op-orchestrator/manifest"
	"github.com/ethereum-optimism/infra/op-orchestrator/metrics"
	"github.com/ethereum-optimism/infra/op-orchestrator/reporting"
	"github.com/ethereum-optimism/infra/op-orchestrator/runner"
	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// orchestrator implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &orchestrator{}

// orchestrator sequences one run: load manifest, execute all tests, settle,
// aggregate. Per-test and per-artifact failures are contained; only an
// unloadable manifest is fatal.
type orchestrator struct {
	ctx     context.Context
	config  *Config
	version string
	client  container.Client
	loader  *manifest.Loader

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates an orchestrator. When client is nil the Docker daemon is
// dialed; tests inject a fake collaborator instead.
func New(ctx context.Context, config *Config, version string, client container.Client, shutdownCallback func(error)) (*orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating orchestrator with config",
		"configDir", config.ConfigDir,
		"reportsDir", config.ReportsDir,
		"reportsHostPath", config.ReportsHostPath,
		"testTimeout", config.TestTimeout,
		"settleDelay", config.SettleDelay,
		"strict", config.Strict)

	if client == nil {
		var err error
		client, err = container.NewDockerClient(config.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create container client: %w", err)
		}
	}

	return &orchestrator{
		ctx:              ctx,
		config:           config,
		version:          version,
		client:           client,
		loader:           manifest.NewLoader(config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs one orchestration pass and then triggers application shutdown.
// Start implements the cliapp.Lifecycle interface.
func (o *orchestrator) Start(ctx context.Context) error {
	// Panics are runtime errors, not test failures.
	defer func() {
		if r := recover(); r != nil {
			o.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	o.ctx = ctx
	o.running.Store(true)
	o.config.Log.Info("Starting op-orchestrator", "version", o.version)

	if err := o.run(ctx); err != nil {
		if IsTestFailureError(err) {
			o.config.Log.Warn("Run completed with test failures (strict mode)", "error", err)
			return err
		}
		o.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	o.config.Log.Info("Run completed, exiting")
	go func() {
		o.shutdownCallback(nil)
	}()
	return nil
}

// run is one full pass of the orchestration state machine.
func (o *orchestrator) run(ctx context.Context) error {
	start := time.Now()

	if err := os.MkdirAll(o.config.ConfigDir, 0o755); err != nil {
		return NewRuntimeError(fmt.Errorf("creating config directory: %w", err))
	}
	if err := os.MkdirAll(o.config.ReportsDir, 0o755); err != nil {
		return NewRuntimeError(fmt.Errorf("creating reports directory: %w", err))
	}

	hostPath := container.ResolveHostPath(ctx, o.client, o.config.Log,
		o.config.ReportsHostPath, o.config.ReportsDir)
	o.config.Log.Info("Reports directory",
		"local", o.config.ReportsDir, "host", hostPath)

	m, err := o.loader.LoadAll(o.config.ConfigDir)
	if err != nil {
		metrics.RecordErrorDetails("manifest load failed", err)
		return NewRuntimeError(err)
	}
	if len(m) == 0 {
		o.config.Log.Info("No tests found in configuration")
		return nil
	}
	o.config.Log.Info("Manifest loaded", "tests", len(m))

	testRunner, err := runner.NewRunner(runner.Config{
		Client:          o.client,
		Log:             o.config.Log,
		ReportsDir:      o.config.ReportsDir,
		ReportsHostPath: hostPath,
		TestTimeout:     o.config.TestTimeout,
	})
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create test runner: %w", err))
	}

	results := testRunner.RunAll(ctx, m)
	runID := testRunner.RunID()

	var artifacts []string
	for _, res := range results {
		if res.Err == nil {
			artifacts = append(artifacts, res.Artifact)
		}
	}

	// Give just-finished containers a moment to flush their artifacts.
	time.Sleep(o.config.SettleDelay)

	if len(artifacts) == 0 {
		o.config.Log.Warn("No reports to combine")
		o.printResultsTable(runID, results)
		return nil
	}

	combiner := reporting.NewCombiner(o.config.Log, o.config.ReportsDir)
	summary, err := combiner.Combine(artifacts)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to combine reports: %w", err))
	}

	metrics.RecordSummary(runID, summary.Tests, summary.Failures,
		summary.Errors, summary.Skipped, time.Since(start))

	o.printResultsTable(runID, results)
	fmt.Println(summary.String())
	o.config.Log.Info("Test run completed", "run_id", runID,
		"tests", summary.Tests, "failures", summary.Failures,
		"errors", summary.Errors, "skipped", summary.Skipped)

	if o.config.Strict && summary.Failures+summary.Errors > 0 {
		return NewTestFailureError(summary.String())
	}
	return nil
}

// Stop stops the op-orchestrator service.
// Stop implements the cliapp.Lifecycle interface.
func (o *orchestrator) Stop(ctx context.Context) error {
	o.config.Log.Info("Stopping op-orchestrator")

	if !o.running.Load() {
		o.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	o.running.Store(false)

	if err := o.client.Close(); err != nil {
		o.config.Log.Warn("Error closing container client", "err", err)
	}

	o.config.Log.Info("op-orchestrator stopped successfully")
	return nil
}

// Stopped returns true if the op-orchestrator service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (o *orchestrator) Stopped() bool {
	return !o.running.Load()
}

// printResultsTable prints the per-test execution outcomes to the console.
func (o *orchestrator) printResultsTable(runID string, results []types.ExecutionResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Suite Orchestration Results (%s)", runID))

	t.AppendHeader(table.Row{
		"Test", "Duration", "Status", "Artifact", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	failed := 0
	for _, res := range results {
		errMsg := ""
		if res.Err != nil {
			errMsg = firstLine(res.Err.Error())
			failed++
		}
		t.AppendRow(table.Row{
			res.Name,
			formatDuration(res.Duration),
			getResultString(res.Status),
			res.Artifact,
			errMsg,
		})
	}

	if failed == 0 {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", fmt.Sprintf("%d run / %d failed", len(results), failed), "", "",
	})
	t.Render()
}

// getResultString returns a string representing the execution outcome
func getResultString(status types.TestStatus) string {
	if status == types.TestStatusPass {
		return "✓ pass"
	}
	return "✗ fail"
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
