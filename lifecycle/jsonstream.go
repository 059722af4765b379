package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

const maxLineSize = 1024 * 1024

// JSONStream is a Source reading one JSON event per line, e.g. the output of
// `docker events --format '{{json .}}'`.  Lines that do not decode are
// delivered as per-item errors.  The end of the reader ends the stream.
type JSONStream struct {
	r io.Reader
}

// NewJSONStream creates a JSONStream over r.
func NewJSONStream(r io.Reader) *JSONStream {
	return &JSONStream{r: r}
}

// wireEvent accepts both the legacy top-level "id" and the Actor.ID of
// newer daemons.
type wireEvent struct {
	Type   string `json:"Type"`
	Action string `json:"Action"`
	ID     string `json:"id"`
	Actor  struct {
		ID string `json:"ID"`
	} `json:"Actor"`
}

// DecodeEvent parses a single JSON-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, err
	}
	ev := Event{Type: w.Type, Action: w.Action, ID: w.ID}
	if ev.ID == "" {
		ev.ID = w.Actor.ID
	}
	return ev, nil
}

// Subscribe implements Source.  A line longer than maxLineSize is skipped
// and reported as a per-item error; the stream carries on after it.
func (s *JSONStream) Subscribe(ctx context.Context) (<-chan Item, <-chan error) {
	items := make(chan Item)
	errs := make(chan error, 1)

	go func() {
		defer close(items)

		send := func(item Item) bool {
			select {
			case items <- item:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReaderSize(s.r, 64*1024)
		for {
			line, tooLong, readErr := readLine(reader)
			if tooLong {
				if !send(Item{Err: errors.Errorf("event line exceeds %d bytes", maxLineSize)}) {
					return
				}
			} else if line = bytes.TrimSpace(line); len(line) > 0 {
				ev, err := DecodeEvent(line)
				item := Item{Event: ev}
				if err != nil {
					item.Err = errors.Wrapf(err, "decoding %q", truncate(line, 64))
				}
				if !send(item) {
					return
				}
			}
			if readErr != nil {
				if readErr != io.EOF {
					errs <- errors.Wrap(readErr, "reading event stream")
				}
				return
			}
		}
	}()

	return items, errs
}

// readLine returns the next line without its newline.  Once a line grows
// past maxLineSize the rest of it is discarded up to the next newline and
// tooLong is set.  A final line without a newline is returned along with
// io.EOF.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		chunk = bytes.TrimSuffix(chunk, []byte("\n"))
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err != bufio.ErrBufferFull {
			return line, tooLong, err
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
