package model

import "strings"

// Op is a bitset of low-level operations reported by a backend.
// Several bits may be set on a single raw event.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpMetadata
	OpCloseWrite
	OpRescan
	OpAccess
)

// OpAttrib is reported by inotify-style backends for attribute changes.
const OpAttrib = OpMetadata

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpMetadata, "METADATA"},
	{OpCloseWrite, "CLOSE_WRITE"},
	{OpRescan, "RESCAN"},
	{OpAccess, "ACCESS"},
}

// Has reports whether every bit of o is set in op.
func (op Op) Has(o Op) bool {
	return o != 0 && op&o == o
}

// Any reports whether at least one bit of o is set in op.
func (op Op) Any(o Op) bool {
	return op&o != 0
}

// Merge returns the union of both bitsets.
func (op Op) Merge(o Op) Op {
	return op | o
}

func (op Op) String() string {
	if op == 0 {
		return "NONE"
	}
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, "|")
}
