package model

// Classify maps a merged operation bitset to an EventKind. It is a pure
// function of its arguments. When precise is false every bitset maps to Any.
func Classify(op Op, precise bool, entry EntryType) EventKind {
	if !precise {
		return KindAny()
	}

	object := objectKind(entry)

	switch {
	case op.Has(OpRescan):
		return KindModifyOther()
	case op.Has(OpCreate | OpRemove):
		// replaced in place within one window
		return KindModifyData()
	case op.Has(OpCreate):
		return KindCreate(object)
	case op.Has(OpRemove):
		return KindRemove(object)
	case op.Has(OpRename):
		return KindRename(RenameAny)
	case op.Any(OpWrite | OpCloseWrite):
		return KindModifyData()
	case op.Has(OpMetadata):
		return KindModifyMetadata()
	case op.Has(OpAccess):
		return KindAccess(AccessAny)
	default:
		return KindOther()
	}
}

// ClassifyRenameHalf classifies one side of a rename that was never paired.
func ClassifyRenameHalf(side RenameSide, precise bool, entry EntryType) EventKind {
	if !precise {
		return KindAny()
	}
	if side == SideTo {
		return KindCreate(objectKind(entry))
	}
	return KindRemove(objectKind(entry))
}

func objectKind(entry EntryType) ObjectKind {
	switch entry {
	case EntryFile:
		return ObjectFile
	case EntryDir:
		return ObjectFolder
	case EntryOther:
		return ObjectOther
	default:
		return ObjectAny
	}
}

func renameMode(side RenameSide) RenameMode {
	switch side {
	case SideFrom:
		return RenameFrom
	case SideTo:
		return RenameTo
	default:
		return RenameAny
	}
}

// ImmediateEvent converts a single raw event into an Event without any
// buffering. Used when debouncing is disabled.
func ImmediateEvent(raw RawEvent, precise bool, source string) Event {
	kind := Classify(raw.Op, precise, raw.Entry)
	if precise && raw.Op.Has(OpRename) && !raw.Op.Any(OpCreate|OpRemove|OpRescan) {
		kind = KindRename(renameMode(raw.Side))
	}

	ev := Event{Kind: kind}
	if raw.Path != "" {
		ev.Paths = []string{raw.Path}
	}
	ev.Attrs.Tracker = raw.Cookie
	ev.Attrs.ProcessID = raw.ProcessID
	ev.Attrs.Source = source
	if raw.Op.Has(OpRescan) {
		ev.Attrs.Flag = FlagRescan
	}
	if precise {
		ev.Attrs.Size = raw.Size
		if !raw.Time.IsZero() {
			t := raw.Time
			ev.Attrs.Timestamp = &t
		}
	}
	return ev
}
