package runtimetest

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tickbridge/tickbridge/protocol"
	"github.com/tickbridge/tickbridge/runner"
)

var errKilled = errors.New("signal: killed")

// Launcher starts fake processes served by a Runtime. It satisfies
// runner.Launcher, so both invoker strategies run against it unchanged.
type Launcher struct {
	rt     *Runtime
	spawns atomic.Int64
}

func NewLauncher(rt *Runtime) *Launcher {
	return &Launcher{rt: rt}
}

// Spawns reports how many processes have been started. Respawn tests key
// off it.
func (l *Launcher) Spawns() int {
	return int(l.spawns.Load())
}

// Launch ignores the binary path and reads the serve mode from the last
// argument, matching the real runner's argv contract.
func (l *Launcher) Launch(binary string, args ...string) (runner.Process, error) {
	mode := ""
	if len(args) > 0 {
		mode = args[len(args)-1]
	}
	incarnation := int(l.spawns.Add(1))

	p := &fakeProcess{done: make(chan struct{}), killed: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()

	go p.serve(l.rt, mode, incarnation)
	return p, nil
}

// fakeProcess speaks the wire protocol over in-memory pipes. Kill tears
// the pipes down so reader goroutines on the host side unblock, the same
// observable effect killing a real child has.
type fakeProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	killOnce sync.Once
	killed   chan struct{}

	done    chan struct{}
	exitMu  sync.Mutex
	exitErr error
}

// setExit records the first exit cause; later causes lose, matching how a
// real Wait reports whichever termination happened first.
func (p *fakeProcess) setExit(err error) {
	p.exitMu.Lock()
	if p.exitErr == nil {
		p.exitErr = err
	}
	p.exitMu.Unlock()
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader     { return p.stderrR }

func (p *fakeProcess) serve(rt *Runtime, mode string, incarnation int) {
	defer close(p.done)
	defer p.closeOutputs(nil)

	in := bufio.NewReader(p.stdinR)
	for {
		env, err := protocol.ReadEnvelope(in)
		if err != nil {
			// stdin EOF or kill: exit the way the real runner does,
			// cleanly, unless already marked killed.
			return
		}
		switch rt.dispatch(env, incarnation, p.stdoutW, p.stderrW) {
		case actHang:
			<-p.killed
			return
		case actCrash:
			p.setExit(errors.New("exit status 2"))
			return
		}
		if mode == "once" {
			return
		}
	}
}

func (p *fakeProcess) closeOutputs(err error) {
	p.stdoutW.CloseWithError(err)
	p.stderrW.CloseWithError(err)
	p.stdinR.CloseWithError(err)
}

func (p *fakeProcess) Wait() error {
	<-p.done
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	return p.exitErr
}

func (p *fakeProcess) Kill() error {
	p.killOnce.Do(func() {
		p.setExit(errKilled)
		close(p.killed)
		p.closeOutputs(io.ErrClosedPipe)
		p.stdinW.CloseWithError(io.ErrClosedPipe)
	})
	return nil
}
