package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_ORCHESTRATOR"

// defaultSettleDelay tolerates filesystem propagation latency between a
// container finishing and its artifact being visible to the aggregator.
const defaultSettleDelay = time.Second

var (
	ConfigDir = &cli.StringFlag{
		Name:  "config-dir",
		Value: "/config",
		// CONFIG_DIR is kept for compatibility with existing deployments.
		EnvVars: append(opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG_DIR"), "CONFIG_DIR"),
		Usage:   "Root directory to recursively discover test configuration YAML files under",
	}
	ReportsDir = &cli.StringFlag{
		Name:    "reports-dir",
		Value:   "/reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORTS_DIR"),
		Usage:   "Shared directory where test containers write their report artifacts",
	}
	ReportsHostPath = &cli.StringFlag{
		Name:  "reports-host-path",
		Value: "",
		// REPORTS_HOST_PATH is kept for compatibility with existing deployments.
		EnvVars: append(opservice.PrefixEnvVar(EnvVarPrefix, "REPORTS_HOST_PATH"), "REPORTS_HOST_PATH"),
		Usage:   "Host path of the reports directory for bind-mount resolution (auto-detected when empty)",
	}
	TestTimeout = &cli.DurationFlag{
		Name:    "test-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_TIMEOUT"),
		Usage:   "Bound on a single test container's execution (e.g. '10m'). 0 disables the bound; a hung test then blocks the run.",
	}
	SettleDelay = &cli.DurationFlag{
		Name:    "settle-delay",
		Value:   defaultSettleDelay,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SETTLE_DELAY"),
		Usage:   "Pause between the last test finishing and report aggregation, to tolerate filesystem propagation latency",
	}
	Strict = &cli.BoolFlag{
		Name:    "strict",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STRICT"),
		Usage:   "Exit 1 when the combined report counts failures or errors (default preserves exit 0)",
	}
)

var optionalFlags = []cli.Flag{
	ConfigDir,
	ReportsDir,
	ReportsHostPath,
	TestTimeout,
	SettleDelay,
	Strict,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}
