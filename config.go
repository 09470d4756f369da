package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-orchestrator/flags"
)

// Config holds the application configuration
type Config struct {
	ConfigDir       string        // Root directory of test configuration files
	ReportsDir      string        // Shared artifact directory, as seen by this process
	ReportsHostPath string        // Host-side path of ReportsDir; empty means auto-detect
	TestTimeout     time.Duration // Bound on one test container; zero means unbounded
	SettleDelay     time.Duration // Pause between execution and aggregation
	Strict          bool          // Exit non-zero when the combined report counts failures
	Log             log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	configDir := ctx.String(flags.ConfigDir.Name)
	if configDir == "" {
		return nil, errors.New("config directory is required")
	}
	reportsDir := ctx.String(flags.ReportsDir.Name)
	if reportsDir == "" {
		return nil, errors.New("reports directory is required")
	}

	absConfigDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for config directory '%s': %w", configDir, err)
	}
	absReportsDir, err := filepath.Abs(reportsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for reports directory '%s': %w", reportsDir, err)
	}

	settleDelay := ctx.Duration(flags.SettleDelay.Name)
	if settleDelay < 0 {
		return nil, errors.New("settle delay must not be negative")
	}

	return &Config{
		ConfigDir:       absConfigDir,
		ReportsDir:      absReportsDir,
		ReportsHostPath: ctx.String(flags.ReportsHostPath.Name),
		TestTimeout:     ctx.Duration(flags.TestTimeout.Name),
		SettleDelay:     settleDelay,
		Strict:          ctx.Bool(flags.Strict.Name),
		Log:             log,
	}, nil
}
