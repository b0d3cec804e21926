package runner

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/loomrun/loomrun/types"
)

// DecodeResult is one element of the decoded event sequence: either a typed
// event or a decode error carrying the offending raw line. A decode error
// does not terminate the sequence.
type DecodeResult struct {
	Event types.Event
	Raw   string
	Err   error
}

// Decode turns a live, line-oriented structured output stream into a lazy
// sequence of decode results. The channel is unbuffered, so decoding keeps
// pace with the consumer and never buffers the whole stream; it is closed
// when the stream ends. Blank lines are skipped.
func Decode(r io.Reader) <-chan DecodeResult {
	out := make(chan DecodeResult)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			ev, err := types.DecodeEvent([]byte(line))
			if err != nil {
				out <- DecodeResult{Raw: line, Err: fmt.Errorf("decoding test event: %w", err)}
				continue
			}
			out <- DecodeResult{Event: ev, Raw: line}
		}
		if err := scanner.Err(); err != nil {
			out <- DecodeResult{Err: fmt.Errorf("reading test output: %w", err)}
		}
	}()
	return out
}

// maxEventLineBytes bounds a single structured output line. Event messages
// are small; this headroom covers long failure payloads in unknown variants.
const maxEventLineBytes = 4 * 1024 * 1024
