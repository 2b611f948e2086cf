package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DiscoverRuntime resolves the node binary for local execution. An explicit
// NodePath wins, then a bundled SDK tree, then $PATH.
func DiscoverRuntime(cfg Config) (string, error) {
	if cfg.NodePath != "" {
		if _, err := os.Stat(cfg.NodePath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, cfg.NodePath)
		}
		return cfg.NodePath, nil
	}

	if cfg.SDKRoot != "" {
		candidate := filepath.Join(cfg.SDKRoot, "runtime", runtime.GOOS, "bin", nodeExecutable())
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(nodeExecutable()); err == nil {
		return path, nil
	}

	return "", ErrBinaryNotFound
}

func nodeExecutable() string {
	if runtime.GOOS == "windows" {
		return "node.exe"
	}
	return "node"
}

// resolveBinary picks the binary an invoker will launch. Remote launchers
// resolve on the far side, so discovery only runs for local execution.
func resolveBinary(cfg Config) (string, error) {
	if _, local := cfg.Launcher.(LocalLauncher); local {
		return DiscoverRuntime(cfg)
	}
	if cfg.NodePath != "" {
		return cfg.NodePath, nil
	}
	return "node", nil
}
