package runner

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Process is a handle on one launched runtime process.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits and reaps it. Safe to call more
	// than once; later calls return the first result.
	Wait() error
	Kill() error
}

// Launcher starts runtime processes on some host: the local one, or a
// remote one over SSH. Invokers work the same over either.
type Launcher interface {
	Launch(binary string, args ...string) (Process, error)
}

// LocalLauncher runs the runtime on this host via os/exec.
type LocalLauncher struct{}

func (LocalLauncher) Launch(binary string, args ...string) (Process, error) {
	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyStartError(err)
	}
	return &localProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// classifyStartError maps start failures onto the invoker taxonomy: a
// missing or non-executable binary is the exit-127 case, everything else is
// an OS-level spawn failure.
func classifyStartError(err error) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrSpawnFailure, err)
}

type localProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	waitOnce sync.Once
	waitErr  error
}

func (p *localProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *localProcess) Stdout() io.Reader     { return p.stdout }
func (p *localProcess) Stderr() io.Reader     { return p.stderr }

func (p *localProcess) Wait() error {
	p.waitOnce.Do(func() { p.waitErr = p.cmd.Wait() })
	return p.waitErr
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// SSHLauncher runs the runtime on a remote host, for scripts that need to
// execute next to remote data. The wire protocol is unchanged; stdin and
// stdout ride the SSH session.
type SSHLauncher struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	DialTimeout                 time.Duration
}

func (l SSHLauncher) Launch(binary string, args ...string) (Process, error) {
	client, err := l.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	}

	stdin, err := session.StdinPipe()
	if err == nil {
		var stdout, stderr io.Reader
		stdout, err = session.StdoutPipe()
		if err == nil {
			stderr, err = session.StderrPipe()
			if err == nil {
				if err = session.Start(joinCommand(binary, args)); err == nil {
					return &sshProcess{
						client:  client,
						session: session,
						stdin:   stdin,
						stdout:  stdout,
						stderr:  stderr,
					}, nil
				}
			}
		}
	}

	_ = session.Close()
	_ = client.Close()
	return nil, fmt.Errorf("%w: %v", ErrSpawnFailure, err)
}

func (l SSHLauncher) dial() (*ssh.Client, error) {
	address, err := l.address()
	if err != nil {
		return nil, err
	}

	config, err := l.clientConfig()
	if err != nil {
		return nil, err
	}

	if l.DialTimeout <= 0 {
		return ssh.Dial("tcp", address, config)
	}

	conn, err := net.DialTimeout("tcp", address, l.DialTimeout)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (l SSHLauncher) address() (string, error) {
	host := strings.TrimSpace(l.Host)
	if host == "" {
		return "", fmt.Errorf("runner: ssh host is required")
	}

	if l.Port != "" {
		return net.JoinHostPort(host, l.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (l SSHLauncher) clientConfig() (*ssh.ClientConfig, error) {
	if l.User == "" {
		return nil, fmt.Errorf("runner: ssh user is required")
	}

	signer, err := l.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if l.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := l.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            l.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         l.DialTimeout,
	}, nil
}

func (l SSHLauncher) signer() (ssh.Signer, error) {
	if l.KeyPath == "" {
		return nil, fmt.Errorf("runner: ssh key path is required")
	}

	privateKey, err := os.ReadFile(l.KeyPath)
	if err != nil {
		return nil, err
	}

	if len(l.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, l.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (l SSHLauncher) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(l.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("runner: known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(path)
}

type sshProcess struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  io.Reader

	waitOnce sync.Once
	waitErr  error
}

func (p *sshProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *sshProcess) Stdout() io.Reader     { return p.stdout }
func (p *sshProcess) Stderr() io.Reader     { return p.stderr }

func (p *sshProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.session.Wait()
		_ = p.session.Close()
		_ = p.client.Close()
	})
	return p.waitErr
}

func (p *sshProcess) Kill() error {
	_ = p.session.Signal(ssh.SIGKILL)
	_ = p.session.Close()
	return p.client.Close()
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
