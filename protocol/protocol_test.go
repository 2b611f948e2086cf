package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/internal/testutil/testlog"
	"github.com/tickbridge/tickbridge/snapshot"
)

func TestScanOutputSeparatesDiagnosticsFromPayload(t *testing.T) {
	testlog.Start(t)

	out := []byte("hello\n" + Marker + "42[]")
	diag, cmds, err := ScanOutput(out, 42)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diag != "hello\n" {
		t.Fatalf("unexpected diagnostics: %q", diag)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected empty command list, got %d", len(cmds))
	}

	id, _, ok, err := ParseResultLine(Marker + "42[]")
	if err != nil || !ok {
		t.Fatalf("parse result line: ok=%v err=%v", ok, err)
	}
	if id != 42 {
		t.Fatalf("matched id = %d, want 42", id)
	}
}

func TestScanOutputDecodesCommands(t *testing.T) {
	testlog.Start(t)

	delta := snapshot.Vec3{0, 0, 0.1}
	line, err := EncodeResultLine(7, []command.Command{
		{Op: command.OpApplyMovement, Object: "Cube", Delta: &delta},
	})
	if err != nil {
		t.Fatalf("encode result line: %v", err)
	}
	out := append([]byte("booting\nscript ran\n"), line...)

	diag, cmds, err := ScanOutput(out, 7)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diag != "booting\nscript ran\n" {
		t.Fatalf("unexpected diagnostics: %q", diag)
	}
	if len(cmds) != 1 || cmds[0].Op != command.OpApplyMovement || cmds[0].Object != "Cube" {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
	if *cmds[0].Delta != delta {
		t.Fatalf("unexpected delta: %v", *cmds[0].Delta)
	}
}

func TestScanOutputNoMarker(t *testing.T) {
	testlog.Start(t)

	diag, cmds, err := ScanOutput([]byte("just\nnoise\n"), 1)
	if !errors.Is(err, ErrNoMarker) {
		t.Fatalf("expected ErrNoMarker, got %v", err)
	}
	if diag != "just\nnoise\n" {
		t.Fatalf("diagnostics lost: %q", diag)
	}
	if cmds != nil {
		t.Fatalf("expected no commands, got %+v", cmds)
	}
}

func TestScanOutputMalformedPayload(t *testing.T) {
	testlog.Start(t)

	cases := []string{
		Marker + "7[{bad\n",
		Marker + "[]\n",
		Marker + "7\n",
	}
	for _, raw := range cases {
		_, _, err := ScanOutput([]byte(raw), 7)
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("%q: expected ErrMalformedPayload, got %v", raw, err)
		}
	}
}

func TestScanOutputPrefixBeforeMarkerIsDiagnostic(t *testing.T) {
	testlog.Start(t)

	out := []byte("warming up" + Marker + "3[]\n")
	diag, cmds, err := ScanOutput(out, 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diag != "warming up" {
		t.Fatalf("unexpected diagnostics: %q", diag)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected empty command list, got %+v", cmds)
	}
}

func TestScanOutputIgnoresForeignFrames(t *testing.T) {
	testlog.Start(t)

	out := []byte(Marker + "9[]\n" + Marker + `7[{"op":"endGame"}]` + "\n" + "tail\n")
	diag, cmds, err := ScanOutput(out, 7)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(diag, Marker+"9[]") {
		t.Fatalf("foreign frame not forwarded as diagnostic: %q", diag)
	}
	if !strings.Contains(diag, "tail\n") {
		t.Fatalf("trailing line not forwarded as diagnostic: %q", diag)
	}
	if len(cmds) != 1 || cmds[0].Op != command.OpEndGame {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestParseResultLinePlainLineIsDiagnostic(t *testing.T) {
	testlog.Start(t)

	_, _, ok, err := ParseResultLine("plain output line")
	if ok || err != nil {
		t.Fatalf("expected plain line, got ok=%v err=%v", ok, err)
	}
}

func TestEncodeResultLineRoundTrip(t *testing.T) {
	testlog.Start(t)

	gravity := snapshot.Vec3{0, 0, -9.8}
	in := []command.Command{
		{Op: command.OpSetGravity, Gravity: &gravity},
		{Op: command.OpRestartGame},
	}
	line, err := EncodeResultLine(314, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(line, []byte(Marker)) {
		t.Fatalf("line must start with marker: %q", line)
	}
	if line[len(line)-1] != '\n' {
		t.Fatalf("line must end with newline: %q", line)
	}
	id, out, ok, err := ParseResultLine(string(line))
	if err != nil || !ok {
		t.Fatalf("parse: ok=%v err=%v", ok, err)
	}
	if id != 314 {
		t.Fatalf("id = %d, want 314", id)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestEnvelopeLineRoundTrip(t *testing.T) {
	testlog.Start(t)

	in := Envelope{
		ID: 12,
		Context: snapshot.Snapshot{
			Engine: snapshot.EngineInfo{FrameRate: 60, CurrentFrame: 5, TimeSinceStart: 0.083},
			Scenes: snapshot.SceneSet{Current: "Main", Scenes: []snapshot.SceneInfo{{Name: "Main", Objects: []string{"Cube"}}}},
			Objects: map[string]snapshot.ObjectState{
				"Cube": {Name: "Cube", Scale: snapshot.Vec3{1, 1, 1}},
			},
		},
		Script:   "owner.applyMovement([0,0,0.1]);",
		ScriptID: ScriptID("owner.applyMovement([0,0,0.1]);"),
	}

	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 1 {
		t.Fatalf("expected exactly one line, got %d newlines", n)
	}

	out, err := ReadEnvelope(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestEnvelopeValidateRequiresScriptOrID(t *testing.T) {
	testlog.Start(t)

	if err := (Envelope{ID: 1}).Validate(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
	if err := (Envelope{ID: 1, ScriptID: "abc"}).Validate(); err != nil {
		t.Fatalf("script_id alone must validate, got %v", err)
	}
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, Envelope{ID: 1}); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("write must validate, got %v", err)
	}
}

func TestReadEnvelopeEOFAndOversize(t *testing.T) {
	testlog.Start(t)

	if _, err := ReadEnvelope(bufio.NewReader(strings.NewReader(""))); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF on empty stream, got %v", err)
	}

	huge := `{"id":1,"script":"` + strings.Repeat("a", maxEnvelopeLineBytes) + `"}` + "\n"
	if _, err := ReadEnvelope(bufio.NewReaderSize(strings.NewReader(huge), 64)); !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Fatalf("expected ErrEnvelopeTooLarge, got %v", err)
	}
}

func TestReadEnvelopeAcceptsFinalLineWithoutNewline(t *testing.T) {
	testlog.Start(t)

	raw := `{"id":3,"script":"x"}`
	e, err := ReadEnvelope(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.ID != 3 || e.Script != "x" {
		t.Fatalf("unexpected envelope: %+v", e)
	}
}

func TestScriptIDStableAndDistinct(t *testing.T) {
	testlog.Start(t)

	a := ScriptID("obj.applyMovement([0,0,0.1]);")
	b := ScriptID("obj.applyMovement([0,0,0.1]);")
	c := ScriptID("obj.applyMovement([0,0,0.2]);")
	if a != b {
		t.Fatalf("same text must hash identically: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("different text must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex, got %q", a)
	}
}
