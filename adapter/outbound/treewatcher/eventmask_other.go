//go:build !linux

package treewatcher

import (
	"github.com/syncthing/notify"

	"github.com/ajkula/GoNotify/domain/model"
)

var eventMask = []notify.Event{notify.All}

// Renames arrive without a cookie here, so each side is merged into the
// per-path entry instead of being paired.
func convert(ei notify.EventInfo) (model.RawEvent, bool) {
	raw := model.RawEvent{Path: ei.Path()}
	ev := ei.Event()

	if ev&notify.Create != 0 {
		raw.Op |= model.OpCreate
	}
	if ev&notify.Remove != 0 {
		raw.Op |= model.OpRemove
	}
	if ev&notify.Write != 0 {
		raw.Op |= model.OpWrite
	}
	if ev&notify.Rename != 0 {
		raw.Op |= model.OpRename
	}
	return raw, raw.Op != 0
}
