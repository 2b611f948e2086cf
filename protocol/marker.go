package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tickbridge/tickbridge/command"
)

// Marker introduces the framed command payload on the runtime's output
// stream. Everything else the runtime prints is diagnostic text. A script
// that prints the marker itself can confuse the framing; the first
// occurrence wins.
const Marker = "<<<COMMANDS>>>"

var (
	ErrNoMarker         = errors.New("protocol: no marker in runtime output")
	ErrMalformedPayload = errors.New("protocol: malformed command payload")
)

// EncodeResultLine renders the framed response line for one request: the
// marker, the request id digits, and the JSON command array.
func EncodeResultLine(id uint64, cmds []command.Command) ([]byte, error) {
	payload, err := command.EncodeList(cmds)
	if err != nil {
		return nil, err
	}
	line := make([]byte, 0, len(Marker)+20+len(payload)+1)
	line = append(line, Marker...)
	line = strconv.AppendUint(line, id, 10)
	line = append(line, payload...)
	line = append(line, '\n')
	return line, nil
}

// ParseResultLine inspects one output line for a framed payload. ok reports
// whether the line carried the marker at all; plain lines are diagnostic
// text. A marker with an unparsable id or payload is a decode failure.
func ParseResultLine(line string) (id uint64, cmds []command.Command, ok bool, err error) {
	at := strings.Index(line, Marker)
	if at < 0 {
		return 0, nil, false, nil
	}
	rest := strings.TrimRight(line[at+len(Marker):], "\r\n")
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, nil, true, fmt.Errorf("%w: missing request id", ErrMalformedPayload)
	}
	id, perr := strconv.ParseUint(rest[:digits], 10, 64)
	if perr != nil {
		return 0, nil, true, fmt.Errorf("%w: bad request id: %v", ErrMalformedPayload, perr)
	}
	payload := strings.TrimSpace(rest[digits:])
	if payload == "" {
		return id, nil, true, fmt.Errorf("%w: missing command array", ErrMalformedPayload)
	}
	cmds, derr := command.DecodeList([]byte(payload))
	if derr != nil {
		return id, nil, true, fmt.Errorf("%w: %v", ErrMalformedPayload, derr)
	}
	return id, cmds, true, nil
}

// ScanOutput decodes a finished runtime's whole output stream: free-form
// diagnostic text plus the command list framed for wantID. Diagnostic text
// keeps its original line breaks; text before the marker on the marker line
// counts as diagnostic too. Well-formed frames for other request ids pass
// through as diagnostics.
func ScanOutput(out []byte, wantID uint64) (string, []command.Command, error) {
	var diag strings.Builder
	var cmds []command.Command
	var decodeErr error
	found := false

	for _, chunk := range bytes.SplitAfter(out, []byte("\n")) {
		if len(chunk) == 0 {
			continue
		}
		line := string(chunk)
		if found {
			diag.WriteString(line)
			continue
		}
		id, parsed, ok, err := ParseResultLine(line)
		switch {
		case !ok:
			diag.WriteString(line)
		case err != nil:
			if at := strings.Index(line, Marker); at > 0 {
				diag.WriteString(line[:at])
			}
			found = true
			decodeErr = err
		case id != wantID:
			diag.WriteString(line)
		default:
			if at := strings.Index(line, Marker); at > 0 {
				diag.WriteString(line[:at])
			}
			found = true
			cmds = parsed
		}
	}

	if !found {
		return diag.String(), nil, ErrNoMarker
	}
	if decodeErr != nil {
		return diag.String(), nil, decodeErr
	}
	return diag.String(), cmds, nil
}
