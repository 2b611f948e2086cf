package runner

import (
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
)

func TestLocalLauncherMissingBinary(t *testing.T) {
	testlog.Start(t)

	_, err := LocalLauncher{}.Launch(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("err = %v, want ErrBinaryNotFound", err)
	}

	t.Setenv("PATH", t.TempDir())
	_, err = LocalLauncher{}.Launch("no-such-binary-on-path")
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("err = %v, want ErrBinaryNotFound", err)
	}
}

func TestLocalLauncherPipes(t *testing.T) {
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not on PATH")
	}
	testlog.Start(t)

	proc, err := LocalLauncher{}.Launch(path)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := io.WriteString(proc.Stdin(), "ping\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := proc.Stdin().Close(); err != nil {
		t.Fatalf("close stdin: %v", err)
	}
	out, err := io.ReadAll(proc.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(out) != "ping\n" {
		t.Fatalf("stdout = %q", out)
	}
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// Wait caches its result.
	if err := proc.Wait(); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
}

func TestLocalLauncherKill(t *testing.T) {
	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not on PATH")
	}
	testlog.Start(t)

	proc, err := LocalLauncher{}.Launch(path)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := proc.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := proc.Wait(); err == nil {
		t.Fatal("Wait after Kill must report the signal")
	}
}

func TestJoinCommandQuoting(t *testing.T) {
	testlog.Start(t)

	got := joinCommand("node", []string{"-e", "console.log('hi there')", ""})
	want := `'node' '-e' 'console.log('"'"'hi there'"'"')' ''`
	if got != want {
		t.Fatalf("joinCommand = %s, want %s", got, want)
	}
	if got := joinCommand("node", nil); got != "'node'" {
		t.Fatalf("joinCommand = %s", got)
	}
}

func TestClassifyStartError(t *testing.T) {
	testlog.Start(t)

	if err := classifyStartError(&exec.Error{Name: "node", Err: exec.ErrNotFound}); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("exec.Error → %v", err)
	}
	if err := classifyStartError(errors.New("fork/exec: resource exhausted")); !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("generic error → %v", err)
	}
	if !strings.Contains(classifyStartError(errors.New("boom")).Error(), "boom") {
		t.Fatal("cause must be preserved in the message")
	}
}
