package container

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
)

// ResolveHostPath determines the host-side path of the reports directory for
// bind-mounting into test containers. Resolution order: explicit override,
// then the mount table of the container this process itself runs in, then
// the local reports directory (the orchestrator is running directly on the
// host).
func ResolveHostPath(ctx context.Context, c Client, logger log.Logger, override, reportsDir string) string {
	if logger == nil {
		logger = log.Root()
	}
	if override != "" {
		logger.Info("Using reports host path override", "path", override)
		return override
	}

	if hostPath, ok := c.DetectHostPath(ctx, os.Getenv("HOSTNAME"), ReportsMountPoint); ok {
		logger.Info("Detected reports host path from container mounts", "path", hostPath)
		return hostPath
	}

	abs, err := filepath.Abs(reportsDir)
	if err != nil {
		logger.Warn("Could not resolve absolute reports path, using as-is",
			"path", reportsDir, "err", err)
		abs = reportsDir
	}
	logger.Info("Using fallback reports host path", "path", abs)
	return abs
}
