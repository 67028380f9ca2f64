package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Flag marks an event with extra delivery semantics.
type Flag uint8

const (
	FlagNone Flag = iota
	// FlagRescan: the subtree under the event path may be stale and should be
	// re-enumerated.
	FlagRescan
	// FlagNotice: low-confidence early notice, a debounced event follows.
	FlagNotice
)

var flagNames = []string{"", "rescan", "notice"}

func (f Flag) String() string { return enumName(flagNames, f) }

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Flag) UnmarshalText(text []byte) error {
	v, err := parseEnum[Flag](flagNames, string(text))
	if err != nil {
		return fmt.Errorf("event flag: %w", err)
	}
	*f = v
	return nil
}

// EventAttributes is optional per-event metadata.
type EventAttributes struct {
	// Tracker is the backend cookie that tied a rename together.
	Tracker   uint32     `json:"tracker,omitempty"`
	Flag      Flag       `json:"flag,omitempty"`
	ProcessID uint32     `json:"processId,omitempty"`
	Size      *int64     `json:"size,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	// Source names the backend that produced the underlying raw event(s).
	Source string `json:"source,omitempty"`
}

// Event is the consumer-facing, classified change notification.
type Event struct {
	// Paths holds one path, or old and new path for a paired rename.
	Paths []string        `json:"paths"`
	Kind  EventKind       `json:"kind"`
	Attrs EventAttributes `json:"attrs"`
}

// NewEvent builds an event for the given kind and paths.
func NewEvent(kind EventKind, paths ...string) Event {
	return Event{Paths: paths, Kind: kind}
}

// Path returns the first path of the event, or "" when it has none.
func (e Event) Path() string {
	if len(e.Paths) == 0 {
		return ""
	}
	return e.Paths[0]
}

// IsRescan reports whether the consumer should re-enumerate the subtree.
func (e Event) IsRescan() bool {
	return e.Attrs.Flag == FlagRescan
}

// IsNotice reports whether this is an early, low-confidence notice.
func (e Event) IsNotice() bool {
	return e.Attrs.Flag == FlagNotice
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" [")
	b.WriteString(strings.Join(e.Paths, " -> "))
	b.WriteString("]")
	if e.Attrs.Flag != FlagNone {
		b.WriteString(" flag=")
		b.WriteString(e.Attrs.Flag.String())
	}
	return b.String()
}

// Result is one item of the outbound stream: either an Event or an error.
type Result struct {
	Event Event
	Err   error
}

// IsError reports whether the result carries an error.
func (r Result) IsError() bool {
	return r.Err != nil
}

// resultJSON is the external form used by the stream adapters.
type resultJSON struct {
	Type  string `json:"type"`
	Event *Event `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(resultJSON{Type: "error", Error: r.Err.Error()})
	}
	ev := r.Event
	return json.Marshal(resultJSON{Type: "event", Event: &ev})
}

// UnmarshalJSON restores a Result from its external form. Error results
// carry the message text only; the sentinel identity is not preserved.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "error":
		*r = Result{Err: errors.New(in.Error)}
	case "event":
		if in.Event == nil {
			return fmt.Errorf("result: event type without event")
		}
		*r = Result{Event: *in.Event}
	default:
		return fmt.Errorf("result: unknown type %q", in.Type)
	}
	return nil
}
