package treewatcher

import (
	"github.com/syncthing/notify"
	"golang.org/x/sys/unix"

	"github.com/ajkula/GoNotify/domain/model"
)

var eventMask = []notify.Event{
	notify.InCreate,
	notify.InDelete,
	notify.InDeleteSelf,
	notify.InModify,
	notify.InCloseWrite,
	notify.InAttrib,
	notify.InMovedFrom,
	notify.InMovedTo,
	notify.InMoveSelf,
}

func convert(ei notify.EventInfo) (model.RawEvent, bool) {
	raw := model.RawEvent{Path: ei.Path()}
	ev := ei.Event()

	switch {
	case ev&notify.InCreate != 0:
		raw.Op = model.OpCreate
	case ev&(notify.InDelete|notify.InDeleteSelf) != 0:
		raw.Op = model.OpRemove
	case ev&notify.InMovedFrom != 0:
		raw.Op, raw.Side = model.OpRename, model.SideFrom
	case ev&notify.InMovedTo != 0:
		raw.Op, raw.Side = model.OpRename, model.SideTo
	case ev&notify.InMoveSelf != 0:
		raw.Op, raw.Side = model.OpRename, model.SideFrom
	case ev&notify.InCloseWrite != 0:
		raw.Op = model.OpCloseWrite
	case ev&notify.InModify != 0:
		raw.Op = model.OpWrite
	case ev&notify.InAttrib != 0:
		raw.Op = model.OpMetadata
	default:
		return raw, false
	}

	if sys, ok := ei.Sys().(*unix.InotifyEvent); ok {
		if raw.Op == model.OpRename {
			raw.Cookie = sys.Cookie
		}
		if sys.Mask&unix.IN_ISDIR != 0 {
			raw.Entry = model.EntryDir
		} else if raw.Op&(model.OpCreate|model.OpRemove|model.OpRename) != 0 {
			raw.Entry = model.EntryFile
		}
	}
	return raw, true
}
