package runner

import (
	"context"
	"strings"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Call is one script invocation: the script text plus the tick context it
// runs against. ScriptID is optional; invokers derive it from the text when
// empty.
type Call struct {
	Script   string
	ScriptID string
	Context  *snapshot.Snapshot
}

// Result is the decoded outcome of one invocation.
type Result struct {
	// RequestID is the envelope id the invoker assigned to this call.
	RequestID uint64
	// Commands holds the decoded command list in script-emission order.
	Commands []command.Command
	// Diagnostics is the free-form stdout text around the marker line.
	Diagnostics string
	// Stderr is captured for ephemeral runs only; a worker's stderr is
	// shared across calls and goes to the log instead.
	Stderr string
}

// Invoker runs scripts against the external runtime. Implementations are
// safe for concurrent use and surface every failure as an error value.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (*Result, error)
	Close() error
}

func validateCall(call Call) error {
	if strings.TrimSpace(call.Script) == "" {
		return ErrEmptyScript
	}
	return nil
}

func callContext(call Call) snapshot.Snapshot {
	if call.Context == nil {
		return snapshot.Snapshot{}
	}
	return *call.Context
}
