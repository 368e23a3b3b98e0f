package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// streamEndMarker terminates the event stream.
const streamEndMarker = "[DONE]"

// Decoder turns a raw server-sent-event stream into a lazy sequence of
// incremental content deltas. Events are delimited by a blank line and may
// span multiple physical reads; the scanner carries partial events across
// chunk boundaries. The sequence is finite and non-restartable: it ends at
// the end marker or when the transport ends, whichever comes first.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder wraps a response body.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitEvents)
	return &Decoder{scanner: scanner}
}

// splitEvents is a bufio.SplitFunc yielding one SSE event per token,
// delimited by a blank line. Both LF and CRLF framing occur in the wild;
// whichever delimiter comes first wins.
func splitEvents(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	i := bytes.Index(data, []byte("\n\n"))
	j := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case j >= 0 && (i < 0 || j < i):
		return j + 4, data[:j], nil
	case i >= 0:
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next returns the next content delta. It returns io.EOF when the stream is
// complete (end marker or transport end), and a non-EOF error for transport
// failures or an in-band provider error event. Malformed events are logged
// and skipped; they never abort the stream.
func (d *Decoder) Next() (string, error) {
	if d.done {
		return "", io.EOF
	}

	for d.scanner.Scan() {
		data, ok := eventData(d.scanner.Text())
		if !ok {
			continue
		}

		if data == streamEndMarker {
			d.done = true
			return "", io.EOF
		}

		var chunk ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug("Skipping malformed stream event: %v", err)
			continue
		}

		if chunk.Error != nil {
			d.done = true
			return "", &APIError{Message: chunk.Error.Message}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta == nil {
			delta = chunk.Choices[0].Message
		}
		if delta == nil || delta.Content == "" {
			continue
		}
		return delta.Content, nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// eventData extracts the data payload from a raw SSE event. Events without a
// data field (comments, bare event types) are skipped.
func eventData(event string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(event, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			parts = append(parts, strings.TrimSpace(rest))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
