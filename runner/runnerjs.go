package runner

import _ "embed"

// runnerJS is the program handed to node -e. It implements the runtime side
// of the wire protocol; the scriptenv package is the canonical Go form of
// the same object graph.
//
//go:embed runner.js
var runnerJS string

const (
	modeOnce  = "once"
	modeServe = "serve"
)

// launchArgs builds the argv for one runtime process. The program reads its
// mode from the last argument.
func launchArgs(mode string) []string {
	return []string{"-e", runnerJS, mode}
}
