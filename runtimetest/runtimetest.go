// Package runtimetest is an in-process stand-in for the external script
// runtime. Scripts are registered as Go functions running against the
// canonical scriptenv object graph, and a fake launcher serves them over
// real pipe pairs, so invokers can be exercised end to end without a node
// binary. Fault registrations cover the failure surface: hangs, crashes and
// raw malformed output.
package runtimetest

import (
	"fmt"
	"io"
	"sync"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/protocol"
	"github.com/tickbridge/tickbridge/scriptenv"
	"github.com/tickbridge/tickbridge/snapshot"
)

// Program runs one request against the script-facing object graph, exactly
// as a registered controller script would.
type Program func(env *scriptenv.Env)

// LineWriter produces raw output lines for one request, newline included.
// It exists to fake framing faults: missing markers, malformed payloads,
// frames for foreign ids.
type LineWriter func(id uint64) []string

type programKind int

const (
	kindProgram programKind = iota
	kindLines
	kindHang
	kindCrash
)

type registration struct {
	kind  programKind
	run   Program
	lines LineWriter
}

// EnvelopeRecord notes one envelope a fake process consumed.
type EnvelopeRecord struct {
	ID        uint64
	ScriptID  string
	HasScript bool
	// Incarnation is 1 for the first process the launcher started, 2 for
	// the next, and so on.
	Incarnation int
}

// Runtime holds script registrations and the envelope history. Safe for
// concurrent use; one Runtime typically backs one test.
type Runtime struct {
	mu      sync.Mutex
	byID    map[string]registration
	history []EnvelopeRecord
}

func NewRuntime() *Runtime {
	return &Runtime{byID: map[string]registration{}}
}

// Register binds script text to a program. Envelopes carrying the text or
// its content id run the program.
func (r *Runtime) Register(script string, fn Program) {
	r.register(script, registration{kind: kindProgram, run: fn})
}

// RegisterLines binds script text to raw output lines, bypassing the
// object graph entirely.
func (r *Runtime) RegisterLines(script string, fn LineWriter) {
	r.register(script, registration{kind: kindLines, lines: fn})
}

// RegisterHang makes requests for script block until the process is
// killed. Timeout paths test against this.
func (r *Runtime) RegisterHang(script string) {
	r.register(script, registration{kind: kindHang})
}

// RegisterCrash makes the serving process exit mid-call without emitting a
// frame.
func (r *Runtime) RegisterCrash(script string) {
	r.register(script, registration{kind: kindCrash})
}

func (r *Runtime) register(script string, reg registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[protocol.ScriptID(script)] = reg
}

// History returns every envelope consumed so far, in arrival order.
func (r *Runtime) History() []EnvelopeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EnvelopeRecord, len(r.history))
	copy(out, r.history)
	return out
}

type action int

const (
	actContinue action = iota
	actHang
	actCrash
)

// dispatch serves one envelope the way the real runner program would: run
// the script, trap anything it throws, and emit exactly one marker line
// carrying whatever was queued before the failure.
func (r *Runtime) dispatch(env protocol.Envelope, incarnation int, stdout, stderr io.Writer) action {
	scriptID := env.ScriptID
	if scriptID == "" {
		scriptID = protocol.ScriptID(env.Script)
	}

	r.mu.Lock()
	reg, known := r.byID[scriptID]
	r.history = append(r.history, EnvelopeRecord{
		ID:          env.ID,
		ScriptID:    scriptID,
		HasScript:   env.Script != "",
		Incarnation: incarnation,
	})
	r.mu.Unlock()

	if !known {
		fmt.Fprintf(stderr, "script error: unknown script %s\n", scriptID)
		writeFrame(stdout, env.ID, nil)
		return actContinue
	}

	switch reg.kind {
	case kindHang:
		return actHang
	case kindCrash:
		return actCrash
	case kindLines:
		for _, line := range reg.lines(env.ID) {
			// Two chunks per line: the invoker must tolerate partial
			// writes on the stream.
			half := len(line) / 2
			io.WriteString(stdout, line[:half])
			io.WriteString(stdout, line[half:])
		}
		return actContinue
	}

	ctx := env.Context
	var queue command.Queue
	scriptEnv := scriptenv.New(&ctx, &queue)
	runTrapped(reg.run, scriptEnv, stderr)
	writeFrame(stdout, env.ID, queue.Commands())
	return actContinue
}

// runTrapped mirrors the real runner's exception trap: a panicking program
// loses nothing it queued before the panic.
func runTrapped(fn Program, env *scriptenv.Env, stderr io.Writer) {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(stderr, "script error: %v\n", rec)
		}
	}()
	fn(env)
}

func writeFrame(w io.Writer, id uint64, cmds []command.Command) {
	line, err := protocol.EncodeResultLine(id, cmds)
	if err != nil {
		fmt.Fprintf(w, "%s%d[]\n", protocol.Marker, id)
		return
	}
	w.Write(line)
}

// ResultLine renders a well-formed frame for use in LineWriter fakes.
func ResultLine(id uint64, cmds []command.Command) string {
	line, err := protocol.EncodeResultLine(id, cmds)
	if err != nil {
		panic(err)
	}
	return string(line)
}

// Run executes registered script text directly against a snapshot, skipping
// the wire entirely. Applier and bridge tests use it when process plumbing
// is beside the point.
func (r *Runtime) Run(script string, snap *snapshot.Snapshot) ([]command.Command, error) {
	r.mu.Lock()
	reg, known := r.byID[protocol.ScriptID(script)]
	r.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("runtimetest: unknown script")
	}
	if reg.kind != kindProgram {
		return nil, fmt.Errorf("runtimetest: script is a fault registration")
	}
	var queue command.Queue
	reg.run(scriptenv.New(snap, &queue))
	return queue.Commands(), nil
}
