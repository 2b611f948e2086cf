package protocol

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tickbridge/tickbridge/snapshot"
)

var (
	ErrInvalidEnvelope  = errors.New("protocol: invalid envelope")
	ErrEnvelopeTooLarge = errors.New("protocol: envelope line too large")
)

// maxEnvelopeLineBytes bounds one envelope line. Contexts stay small but
// script text rides along, so the cap is generous.
const maxEnvelopeLineBytes = 8 * 1024 * 1024

// Envelope is one invocation request: the per-tick context plus the script
// to run. A worker that has already seen a script may be sent ScriptID
// alone; the first send of a given script carries both so the worker can
// populate its cache.
type Envelope struct {
	ID       uint64            `json:"id"`
	Context  snapshot.Snapshot `json:"context"`
	Script   string            `json:"script,omitempty"`
	ScriptID string            `json:"script_id,omitempty"`
}

func (e Envelope) Validate() error {
	if e.Script == "" && e.ScriptID == "" {
		return fmt.Errorf("%w: missing script and script_id", ErrInvalidEnvelope)
	}
	return nil
}

// WriteEnvelope writes e as one newline-terminated JSON line.
func WriteEnvelope(w io.Writer, e Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadEnvelope reads one envelope line. In-process runtimes use it to serve
// the runtime side of the protocol.
func ReadEnvelope(r *bufio.Reader) (Envelope, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		return Envelope{}, err
	}
	if len(line) == 0 {
		return Envelope{}, io.EOF
	}
	if len(line) > maxEnvelopeLineBytes {
		return Envelope{}, ErrEnvelopeTooLarge
	}
	var e Envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// ScriptID returns the stable content id for script text, used for worker
// cache correlation.
func ScriptID(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}
