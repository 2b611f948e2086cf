package runner

import "time"

// Config controls how invokers find, launch and talk to the script runtime.
type Config struct {
	// NodePath pins the runtime binary. Empty means discover: the bundled
	// SDK tree first, then $PATH.
	NodePath string
	// SDKRoot points at a bundled runtime tree laid out as
	// runtime/<goos>/bin/node (node.exe on Windows).
	SDKRoot string
	// Timeout bounds one invocation end to end.
	Timeout time.Duration
	// ShutdownGrace is how long Close lets a worker drain after its stdin
	// closes before killing it.
	ShutdownGrace time.Duration
	// Launcher starts runtime processes. Nil means LocalLauncher.
	Launcher Launcher
}

// DefaultConfig returns the invocation defaults shared by both strategies.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		ShutdownGrace: 2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = def.ShutdownGrace
	}
	if c.Launcher == nil {
		c.Launcher = LocalLauncher{}
	}
	return c
}
