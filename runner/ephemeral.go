package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/internal/observability"
	"github.com/tickbridge/tickbridge/protocol"
)

// Ephemeral runs one runtime process per invocation. Every call pays the
// process startup cost and is fully isolated from every other call.
type Ephemeral struct {
	cfg    Config
	binary string

	nextRequestID atomic.Uint64
	closed        atomic.Bool
}

// NewEphemeral resolves the runtime binary and returns a spawn-per-call
// invoker.
func NewEphemeral(cfg Config) (*Ephemeral, error) {
	cfg = cfg.withDefaults()
	binary, err := resolveBinary(cfg)
	if err != nil {
		return nil, err
	}
	return &Ephemeral{cfg: cfg, binary: binary}, nil
}

func (e *Ephemeral) Invoke(ctx context.Context, call Call) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateCall(call); err != nil {
		return nil, err
	}

	id := e.nextRequestID.Add(1)
	proc, err := e.cfg.Launcher.Launch(e.binary, launchArgs(modeOnce)...)
	if err != nil {
		return nil, err
	}
	observability.RecordRuntimeSpawn("ephemeral")

	env := protocol.Envelope{ID: id, Context: callContext(call), Script: call.Script}

	// The child reads the envelope before anything else, but a large
	// context can outgrow the pipe buffer, so the write cannot block the
	// timeout select.
	go func() {
		stdin := proc.Stdin()
		if err := protocol.WriteEnvelope(stdin, env); err != nil {
			log.Debug().Uint64("request_id", id).Err(err).Msg("runtime envelope write failed")
		}
		_ = stdin.Close()
	}()

	type runOutput struct {
		stdout  []byte
		stderr  []byte
		waitErr error
	}
	done := make(chan runOutput, 1)
	go func() {
		var out runOutput
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			out.stdout, _ = io.ReadAll(proc.Stdout())
		}()
		go func() {
			defer wg.Done()
			out.stderr, _ = io.ReadAll(proc.Stderr())
		}()
		wg.Wait()
		out.waitErr = proc.Wait()
		done <- out
	}()

	timer := time.NewTimer(e.cfg.Timeout)
	defer timer.Stop()

	var out runOutput
	select {
	case out = <-done:
	case <-timer.C:
		_ = proc.Kill()
		return nil, fmt.Errorf("%w: after %s", ErrTimeout, e.cfg.Timeout)
	case <-ctx.Done():
		_ = proc.Kill()
		return nil, ctx.Err()
	}

	diag, cmds, scanErr := protocol.ScanOutput(out.stdout, id)
	stderr := string(out.stderr)
	if scanErr != nil {
		if out.waitErr != nil {
			return nil, fmt.Errorf("%w: runtime exited: %v (stderr: %s)", scanErr, out.waitErr, tail(stderr))
		}
		return nil, scanErr
	}

	return &Result{
		RequestID:   id,
		Commands:    cmds,
		Diagnostics: diag,
		Stderr:      stderr,
	}, nil
}

// Close prevents further invocations. Running calls finish on their own;
// each one owns its process.
func (e *Ephemeral) Close() error {
	e.closed.Store(true)
	return nil
}

// tail keeps error messages readable when a runtime dumps a long stack.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
