// Package transport provides the default implementation of the capture
// orchestrator's injected send function: it spawns a helper process (the
// native messaging host or an AppleScript shim), writes the request envelope
// to its stdin as a single JSON line, and decodes one JSON value from its
// stdout. The orchestrator validates whatever comes back; this package makes
// no claims about the response shape.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/hpungsan/glance/internal/capture"
	"github.com/hpungsan/glance/internal/protocol"
)

// Exec returns a Transport that runs command with args for every capture
// attempt. The process inherits the attempt's context, so a timed-out
// attempt kills the helper rather than leaving it running.
func Exec(command string, args ...string) capture.Transport {
	return func(ctx context.Context, req *protocol.Envelope[protocol.CaptureRequest]) (any, error) {
		data, err := EncodeRequestLine(req)
		if err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Stdin = bytes.NewReader(data)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if stderr.Len() > 0 {
				return nil, fmt.Errorf("transport command %q: %w: %s", command, err, firstLine(stderr.Bytes()))
			}
			return nil, fmt.Errorf("transport command %q: %w", command, err)
		}

		return DecodeResponseLine(stdout.Bytes())
	}
}

// EncodeRequestLine serializes a request envelope as one newline-terminated
// JSON line for the helper's stdin.
func EncodeRequestLine(req *protocol.Envelope[protocol.CaptureRequest]) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding capture request: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeResponseLine decodes the first line of the helper's stdout as an
// arbitrary JSON value. Anything after the first line is ignored; helpers
// are free to log there.
func DecodeResponseLine(output []byte) (any, error) {
	line := firstLine(output)
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("transport produced no output")
	}
	var value any
	if err := json.Unmarshal(line, &value); err != nil {
		return nil, fmt.Errorf("decoding transport response: %w", err)
	}
	return value, nil
}

// firstLine returns data up to (not including) the first newline.
func firstLine(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i]
	}
	return data
}
