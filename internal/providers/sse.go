package providers

import (
	"bufio"
	"context"
	"io"
	"strings"
)

type sseEvent struct {
	Event string
	Data  string
}

// readSSE reads server-sent events from r and hands each complete event to fn
// until fn reports done, the stream ends, or ctx is cancelled.
func readSSE(ctx context.Context, r io.Reader, fn func(sseEvent) (bool, error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var (
		ev   sseEvent
		data []string
	)
	dispatch := func() (bool, error) {
		if len(data) == 0 {
			ev = sseEvent{}
			return false, nil
		}
		ev.Data = strings.Join(data, "\n")
		done, err := fn(ev)
		ev, data = sseEvent{}, data[:0]
		return done, err
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		switch {
		case line == "":
			done, err := dispatch()
			if err != nil || done {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			ev.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Flush a trailing event without a terminating blank line.
	_, err := dispatch()
	return err
}
