package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
)

// tensorMagic prefixes every tensor frame on the wire.
var tensorMagic = [4]byte{'H', 'S', 'H', '1'}

const maxStderrBytes = 4096

// Command adapts an external inference binary to the Predictor contract.
// Tensors are exchanged over stdin/stdout as a 12-byte header (magic,
// uint32 bins, uint32 frames, little-endian) followed by the float32
// payload. The shape convention is fixed here, at construction, so the
// per-call path never negotiates arguments.
type Command struct {
	path string
	args []string
}

// NewCommand resolves the inference binary. The command string may carry
// arguments separated by whitespace. Resolution failures are LoadErrors so
// startup fails loudly instead of silently substituting a fake model.
func NewCommand(command string) (*Command, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, &LoadError{Err: errors.New("model command not configured")}
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, &LoadError{Path: fields[0], Err: err}
	}
	return &Command{path: path, args: fields[1:]}, nil
}

// Name implements Predictor.
func (c *Command) Name() string { return "command:" + c.path }

// Predict runs one inference round-trip through the external process. Any
// failure surfaces as a single error; partial output is never returned.
func (c *Command) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = bytes.NewReader(encodeTensor(in))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("model command stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxStderrBytes}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("model command start: %w", err)
	}

	out, decodeErr := decodeTensor(stdout, in.Bins, in.Frames)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, fmt.Errorf("model command failed: %w%s", waitErr, stderrSuffix(&stderr))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("model command output: %w%s", decodeErr, stderrSuffix(&stderr))
	}
	return out, nil
}

func encodeTensor(t *Tensor) []byte {
	buf := make([]byte, 12+4*len(t.Data))
	copy(buf[0:4], tensorMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(t.Bins))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(t.Frames))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[12+4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeTensor(r io.Reader, wantBins, wantFrames int) (*Tensor, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header[0:4], tensorMagic[:]) {
		return nil, fmt.Errorf("bad magic %q", header[0:4])
	}
	bins := int(binary.LittleEndian.Uint32(header[4:8]))
	frames := int(binary.LittleEndian.Uint32(header[8:12]))
	if bins != wantBins || frames != wantFrames {
		return nil, fmt.Errorf("shape mismatch: got %dx%d, want %dx%d", bins, frames, wantBins, wantFrames)
	}

	payload := make([]byte, 4*bins*frames)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	out := NewTensor(bins, frames)
	for i := range out.Data {
		out.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
	return out, nil
}

func stderrSuffix(buf *bytes.Buffer) string {
	msg := strings.TrimSpace(buf.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}

type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n <= 0 {
		return len(p), nil
	}
	if len(p) > l.n {
		if _, err := l.w.Write(p[:l.n]); err != nil {
			return 0, err
		}
		l.n = 0
		return len(p), nil
	}
	l.n -= len(p)
	return l.w.Write(p)
}
