package model

import "time"

// RenameSide tells which half of a rename a raw event describes, when the
// backend knows it.
type RenameSide uint8

const (
	SideUnknown RenameSide = iota
	SideFrom
	SideTo
)

func (s RenameSide) String() string {
	switch s {
	case SideFrom:
		return "from"
	case SideTo:
		return "to"
	default:
		return "unknown"
	}
}

// EntryType is the kind of filesystem entry a raw event refers to.
type EntryType uint8

const (
	EntryUnknown EntryType = iota
	EntryFile
	EntryDir
	EntryOther
)

// RawEvent is the unprocessed notification produced by a backend.
// It is treated as immutable once sent.
type RawEvent struct {
	// Path may be empty for a global rescan notice.
	Path string
	Op   Op
	// Cookie correlates both halves of a rename. Zero means no cookie.
	Cookie uint32
	Side   RenameSide
	Entry  EntryType

	// optional metadata, surfaced only with precise events
	Size      *int64
	ProcessID uint32
	Time      time.Time

	// Err carries a backend-reported error. When Fatal is set the backend
	// has stopped producing events for Path.
	Err   error
	Fatal bool
}

// IsTerminal reports whether the event signals a backend failure.
func (e RawEvent) IsTerminal() bool {
	return e.Err != nil && e.Fatal
}

// IsError reports whether the event carries an error rather than a change.
func (e RawEvent) IsError() bool {
	return e.Err != nil
}

// HasCookie reports whether the event can take part in rename pairing.
func (e RawEvent) HasCookie() bool {
	return e.Cookie != 0 && e.Op.Has(OpRename)
}
