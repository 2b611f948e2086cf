// Package bridge drives controller scripts across the runtime boundary: it
// freezes the host model into a Snapshot, hands it to an invoker, and
// replays the returned command list against the live model. One RunTick is
// one controller execution; scripting failures become logged outcomes, never
// host failures.
package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/host"
	"github.com/tickbridge/tickbridge/internal/observability"
	"github.com/tickbridge/tickbridge/protocol"
	"github.com/tickbridge/tickbridge/runner"
	"github.com/tickbridge/tickbridge/snapshot"
)

var (
	ErrNoModel   = errors.New("bridge: model required")
	ErrNoInvoker = errors.New("bridge: invoker required")
)

// Tick outcome labels, used in reports and as the metrics outcome tag.
const (
	OutcomeOK               = "ok"
	OutcomeInactive         = "inactive"
	OutcomeEmptyScript      = "empty_script"
	OutcomeBinaryNotFound   = "binary_not_found"
	OutcomeSpawnFailure     = "spawn_failure"
	OutcomeTimeout          = "timeout"
	OutcomeWorkerCrashed    = "worker_crashed"
	OutcomeNoMarker         = "no_marker"
	OutcomeMalformedPayload = "malformed_payload"
	OutcomeInvokerClosed    = "invoker_closed"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Config wires a Bridge. Model and Invoker are required. Input is optional;
// without one the Snapshot carries an empty input state.
type Config struct {
	Model   host.Model
	Invoker runner.Invoker
	Input   host.InputSource
	// Logger overrides the global logger. Nil uses it with a component tag.
	Logger *zerolog.Logger
}

// Bridge runs controller scripts against one host model. Safe for use from
// a single tick loop; concurrent RunTick calls would interleave applies and
// are not supported.
type Bridge struct {
	model   host.Model
	invoker runner.Invoker
	input   host.InputSource
	log     zerolog.Logger
}

func New(cfg Config) (*Bridge, error) {
	if cfg.Model == nil {
		return nil, ErrNoModel
	}
	if cfg.Invoker == nil {
		return nil, ErrNoInvoker
	}
	lg := log.With().Str("component", "bridge").Logger()
	if cfg.Logger != nil {
		lg = *cfg.Logger
	}
	return &Bridge{
		model:   cfg.Model,
		invoker: cfg.Invoker,
		input:   cfg.Input,
		log:     lg,
	}, nil
}

// TickInput names one controller execution: which controller's view to
// snapshot and the script to run for it. ScriptID pins the worker-side cache
// identity; empty derives it from the text.
type TickInput struct {
	Controller string
	Script     string
	ScriptID   string
}

// TickReport is the outcome of one controller execution. Err carries the
// scripting failure, if any; it is informational, never fatal to the loop.
type TickReport struct {
	Controller  string
	Outcome     string
	Commands    int
	Applied     int
	Skips       []host.Skip
	Diagnostics string
	Err         error
	Duration    time.Duration
}

// RunTick executes one controller script end to end: Snapshot, invoke,
// apply. Every failure kind is converted into the report's outcome; RunTick
// never returns an error and never panics on script misbehavior.
func (b *Bridge) RunTick(ctx context.Context, in TickInput) TickReport {
	start := time.Now()
	rep := TickReport{Controller: in.Controller}

	if ctrl, known := b.model.Controller(in.Controller); known && !ctrl.Active {
		rep.Outcome = OutcomeInactive
		rep.Duration = time.Since(start)
		observability.RecordTick(in.Controller, rep.Outcome)
		return rep
	}

	var input snapshot.InputState
	if b.input != nil {
		input = b.input.Input()
	}
	snap := host.BuildSnapshot(b.model, in.Controller, input)

	res, err := b.invoker.Invoke(ctx, runner.Call{
		Script:   in.Script,
		ScriptID: in.ScriptID,
		Context:  snap,
	})
	if err != nil {
		rep.Err = err
		rep.Outcome = outcomeFor(err)
		rep.Duration = time.Since(start)
		observability.RecordTick(in.Controller, rep.Outcome)
		b.log.Warn().
			Str("controller", in.Controller).
			Str("outcome", rep.Outcome).
			Err(err).
			Msg("script invocation failed")
		return rep
	}

	rep.Diagnostics = res.Diagnostics
	b.passThrough(in.Controller, res)

	applied := host.Apply(b.model, res.Commands)
	rep.Commands = len(res.Commands)
	rep.Applied = applied.Applied
	rep.Skips = applied.Skips
	rep.Outcome = OutcomeOK
	rep.Duration = time.Since(start)
	observability.RecordTick(in.Controller, rep.Outcome)
	b.log.Debug().
		Str("controller", in.Controller).
		Int("commands", rep.Commands).
		Int("applied", rep.Applied).
		Int("skipped", len(rep.Skips)).
		Dur("duration", rep.Duration).
		Msg("tick applied")
	return rep
}

// Close shuts down the invoker. The model stays usable; only the runtime
// side is released.
func (b *Bridge) Close() error {
	return b.invoker.Close()
}

// passThrough forwards script console output to the host log, one event per
// line, and surfaces captured stderr. Script exceptions arrive here as
// stderr text; they are diagnostics, not failures.
func (b *Bridge) passThrough(controller string, res *runner.Result) {
	if diag := strings.TrimRight(res.Diagnostics, "\n"); diag != "" {
		for _, line := range strings.Split(diag, "\n") {
			b.log.Debug().
				Str("controller", controller).
				Str("output", line).
				Msg("script output")
		}
	}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		b.log.Warn().
			Str("controller", controller).
			Str("stderr", stderr).
			Msg("script stderr")
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, runner.ErrEmptyScript):
		return OutcomeEmptyScript
	case errors.Is(err, runner.ErrBinaryNotFound):
		return OutcomeBinaryNotFound
	case errors.Is(err, runner.ErrSpawnFailure):
		return OutcomeSpawnFailure
	case errors.Is(err, runner.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, runner.ErrWorkerCrashed):
		return OutcomeWorkerCrashed
	case errors.Is(err, protocol.ErrNoMarker):
		return OutcomeNoMarker
	case errors.Is(err, protocol.ErrMalformedPayload):
		return OutcomeMalformedPayload
	case errors.Is(err, runner.ErrClosed):
		return OutcomeInvokerClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
