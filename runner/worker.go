package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/internal/observability"
	"github.com/tickbridge/tickbridge/protocol"
)

const stderrTailLines = 16

// Worker keeps one long-lived runtime process and correlates calls to
// marker lines by request id. The process is spawned on first use; if it
// exits, in-flight calls fail with ErrWorkerCrashed and the next call
// spawns a fresh one. Nothing is replayed across a respawn.
type Worker struct {
	cfg    Config
	binary string

	nextRequestID atomic.Uint64

	mu      sync.Mutex
	session *workerSession
	known   map[string]struct{}
	closed  bool
}

// NewWorker resolves the runtime binary and returns a persistent-worker
// invoker. The worker process itself starts lazily.
func NewWorker(cfg Config) (*Worker, error) {
	cfg = cfg.withDefaults()
	binary, err := resolveBinary(cfg)
	if err != nil {
		return nil, err
	}
	return &Worker{cfg: cfg, binary: binary}, nil
}

func (w *Worker) Invoke(ctx context.Context, call Call) (*Result, error) {
	if err := validateCall(call); err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	sess, err := w.ensureSessionLocked()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	id := w.nextRequestID.Add(1)
	scriptID := call.ScriptID
	if scriptID == "" {
		scriptID = protocol.ScriptID(call.Script)
	}
	_, cached := w.known[scriptID]
	w.mu.Unlock()

	// Repeat calls with an unchanged script ride on the worker's compiled
	// cache; only the first send of a given hash carries the text.
	env := protocol.Envelope{ID: id, Context: callContext(call), ScriptID: scriptID}
	if !cached {
		env.Script = call.Script
	}

	reply := make(chan workerReply, 1)
	if err := sess.addPending(id, reply); err != nil {
		return nil, err
	}

	sess.writeMu.Lock()
	werr := protocol.WriteEnvelope(sess.stdin, env)
	sess.writeMu.Unlock()
	if werr != nil {
		sess.removePending(id)
		w.discard(sess)
		_ = sess.proc.Kill()
		return nil, fmt.Errorf("%w: envelope write: %v", ErrWorkerCrashed, werr)
	}
	if !cached {
		w.rememberScript(sess, scriptID)
	}

	timer := time.NewTimer(w.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		if r.err != nil {
			return nil, r.err
		}
		return &Result{RequestID: id, Commands: r.cmds}, nil
	case <-timer.C:
		// Framing state cannot be trusted after a partial exchange, so
		// the whole worker goes; the next call starts a fresh one.
		sess.removePending(id)
		w.discard(sess)
		_ = sess.proc.Kill()
		return nil, fmt.Errorf("%w: after %s", ErrTimeout, w.cfg.Timeout)
	case <-ctx.Done():
		sess.removePending(id)
		w.discard(sess)
		_ = sess.proc.Kill()
		return nil, ctx.Err()
	}
}

// Close shuts the worker down: stdin closes so the serve loop drains and
// exits, and the process is killed after ShutdownGrace if it has not.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	sess := w.session
	w.session = nil
	w.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.writeMu.Lock()
	_ = sess.stdin.Close()
	sess.writeMu.Unlock()

	timer := time.NewTimer(w.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-sess.done:
	case <-timer.C:
		_ = sess.proc.Kill()
		<-sess.done
	}
	return nil
}

func (w *Worker) ensureSessionLocked() (*workerSession, error) {
	if w.session != nil {
		select {
		case <-w.session.done:
			w.session = nil
		default:
			return w.session, nil
		}
	}

	proc, err := w.cfg.Launcher.Launch(w.binary, launchArgs(modeServe)...)
	if err != nil {
		return nil, err
	}
	observability.RecordRuntimeSpawn("worker")
	log.Info().Str("binary", w.binary).Msg("script worker spawned")

	w.session = newWorkerSession(proc)
	w.known = make(map[string]struct{})
	return w.session, nil
}

// discard drops sess as the live session so the next call respawns. The
// caller kills the process; the exit watcher fails whatever is still
// pending on it.
func (w *Worker) discard(sess *workerSession) {
	w.mu.Lock()
	if w.session == sess {
		w.session = nil
	}
	w.mu.Unlock()
}

func (w *Worker) rememberScript(sess *workerSession, scriptID string) {
	w.mu.Lock()
	if w.session == sess {
		w.known[scriptID] = struct{}{}
	}
	w.mu.Unlock()
}

type workerReply struct {
	cmds []command.Command
	err  error
}

// workerSession owns one worker process incarnation: its stream pair, the
// pending-call map and the goroutines that drain stdout and stderr. Exactly
// one reply is delivered per registered pending call, by the reader or by
// terminate.
type workerSession struct {
	proc  Process
	stdin io.WriteCloser

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan workerReply
	err     error

	done chan struct{}

	tailMu sync.Mutex
	tail   []string
}

func newWorkerSession(proc Process) *workerSession {
	s := &workerSession{
		proc:    proc,
		stdin:   proc.Stdin(),
		pending: make(map[uint64]chan workerReply),
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.readLoop(&wg)
	go s.stderrLoop(&wg)
	go func() {
		wg.Wait()
		s.terminate(s.exitError(proc.Wait()))
	}()

	return s
}

func (s *workerSession) addPending(id uint64, reply chan workerReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pending[id] = reply
	return nil
}

func (s *workerSession) removePending(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *workerSession) takePending(id uint64) (chan workerReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return reply, ok
}

// terminate fails everything still pending and marks the session dead.
// First caller wins; the error sticks for later addPending attempts. done
// closes before the orphan errors go out, so any caller that saw a crash
// error is guaranteed the next Invoke spawns a fresh worker.
func (s *workerSession) terminate(err error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	orphaned := s.pending
	s.pending = make(map[uint64]chan workerReply)
	s.mu.Unlock()

	close(s.done)
	for _, reply := range orphaned {
		reply <- workerReply{err: err}
	}
}

func (s *workerSession) readLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	reader := bufio.NewReader(s.proc.Stdout())
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			s.handleLine(line)
		}
		if err != nil {
			return
		}
	}
}

// handleLine routes one stdout line: marker frames go to the pending call
// they name, everything else is script diagnostic output and goes to the
// log. The worker serves requests sequentially, so per-call attribution of
// plain lines is not attempted.
func (s *workerSession) handleLine(line string) {
	id, cmds, ok, perr := protocol.ParseResultLine(line)
	if !ok {
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			log.Info().Str("component", "worker").Msg(trimmed)
		}
		return
	}
	if perr != nil && id == 0 {
		log.Warn().Err(perr).Msg("unroutable worker frame")
		return
	}
	reply, found := s.takePending(id)
	if !found {
		log.Warn().Uint64("request_id", id).Msg("stale worker frame")
		return
	}
	if perr != nil {
		reply <- workerReply{err: perr}
		return
	}
	reply <- workerReply{cmds: cmds}
}

func (s *workerSession) stderrLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	reader := bufio.NewReader(s.proc.Stderr())
	for {
		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			s.recordStderr(trimmed)
			log.Warn().Str("component", "worker").Msg(trimmed)
		}
		if err != nil {
			return
		}
	}
}

func (s *workerSession) recordStderr(line string) {
	s.tailMu.Lock()
	s.tail = append(s.tail, line)
	if len(s.tail) > stderrTailLines {
		s.tail = s.tail[len(s.tail)-stderrTailLines:]
	}
	s.tailMu.Unlock()
}

func (s *workerSession) stderrTail() string {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	return strings.Join(s.tail, " | ")
}

func (s *workerSession) exitError(waitErr error) error {
	status := "exit status 0"
	if waitErr != nil {
		status = waitErr.Error()
	}
	if tail := s.stderrTail(); tail != "" {
		return fmt.Errorf("%w: %s (stderr: %s)", ErrWorkerCrashed, status, tail)
	}
	return fmt.Errorf("%w: %s", ErrWorkerCrashed, status)
}
