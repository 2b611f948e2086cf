package runner

import "errors"

var (
	ErrBinaryNotFound = errors.New("runner: script runtime binary not found")
	ErrSpawnFailure   = errors.New("runner: script runtime spawn failed")
	ErrTimeout        = errors.New("runner: script invocation timed out")
	ErrWorkerCrashed  = errors.New("runner: worker exited")
	ErrClosed         = errors.New("runner: invoker closed")
	ErrEmptyScript    = errors.New("runner: empty script")
)
