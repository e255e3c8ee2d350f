// Package sse reads text/event-stream bodies as used by the OpenAI and
// Anthropic streaming APIs.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrStop may be returned by a handler to end reading without error.
var ErrStop = errors.New("sse: stop")

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	Data string
}

// Read calls fn for every event in r. Multi-line data fields are joined
// with newlines. Comment lines are ignored.
func Read(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var ev Event
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			ev = Event{}
			return nil
		}
		ev.Data = strings.Join(data, "\n")
		err := fn(ev)
		ev, data = Event{}, data[:0]
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return stop(err)
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return stop(dispatch())
}

func stop(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
