package service

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const DefaultDebounceInterval = 100 * time.Millisecond

// pendingEntry aggregates every raw event seen for one path since it was
// last flushed.
type pendingEntry struct {
	op        model.Op
	firstSeen time.Time
	lastSeen  time.Time
	seq       uint64
	entry     model.EntryType
	size      *int64
	pid       uint32
}

// renameHalf is one side of a rename waiting for its partner cookie.
type renameHalf struct {
	path   string
	side   model.RenameSide
	expiry time.Time
	seen   time.Time
	seq    uint64
	entry  model.EntryType
	pid    uint32
}

// due is a result ready to leave the engine, ordered by the sequence number
// of the raw event that opened it.
type due struct {
	seq    uint64
	result model.Result
}

type configRequest struct {
	option model.Config
	reply  chan bool
}

// DebouncerConfig holds the engine settings.
type DebouncerConfig struct {
	Interval time.Duration
	Precise  bool
	Notice   bool
	// Source is copied into every emitted event.
	Source  string
	Logger  outbound.Logger
	Metrics outbound.Metrics
	// Clock defaults to time.Now; tests replace it.
	Clock func() time.Time
}

// Debouncer turns a stream of raw events into classified, coalesced events.
// Its state is owned by whichever goroutine drives it: either the caller of
// Ingest/Tick, or the Run loop. It performs no I/O.
type Debouncer struct {
	interval time.Duration
	precise  bool
	notice   bool
	source   string

	pending map[string]*pendingEntry
	renames map[uint32]*renameHalf
	seq     uint64

	sawTerminal bool

	logger  outbound.Logger
	metrics outbound.Metrics
	now     func() time.Time

	configCh chan configRequest
	done     chan struct{}
}

func NewDebouncer(cfg DebouncerConfig) *Debouncer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = outbound.NopLogger{}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Debouncer{
		interval: interval,
		precise:  cfg.Precise,
		notice:   cfg.Notice,
		source:   cfg.Source,
		pending:  make(map[string]*pendingEntry),
		renames:  make(map[uint32]*renameHalf),
		logger:   logger,
		metrics:  metrics,
		now:      clock,
		configCh: make(chan configRequest),
		done:     make(chan struct{}),
	}
}

// Interval returns the current debounce interval.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Pending returns the number of paths and rename halves awaiting a flush.
func (d *Debouncer) Pending() int {
	return len(d.pending) + len(d.renames)
}

// Ingest consumes one raw event observed at now and returns whatever must be
// delivered immediately: errors, paired renames and notices.
func (d *Debouncer) Ingest(raw model.RawEvent, now time.Time) []model.Result {
	if raw.IsError() {
		return d.ingestError(raw)
	}

	d.metrics.RawEventReceived(d.source)

	if !raw.HasCookie() {
		return d.merge(raw, raw.Op, now)
	}

	// rename pairing takes priority; any other bits on the same
	// notification still go through the normal merge
	var out []model.Result
	if rest := raw.Op &^ model.OpRename; rest != 0 {
		out = d.merge(raw, rest, now)
	}
	return append(out, d.ingestRename(raw, now)...)
}

func (d *Debouncer) ingestError(raw model.RawEvent) []model.Result {
	d.metrics.BackendError(raw.Fatal)

	if !raw.Fatal {
		d.logger.Warn("Backend reported an error", "path", raw.Path, "error", raw.Err)
		return []model.Result{{Err: raw.Err}}
	}

	d.sawTerminal = true
	dropped := d.discardTree(raw.Path)
	d.logger.Error("Backend failure, discarding pending state",
		"path", raw.Path, "dropped", dropped, "error", raw.Err)
	return []model.Result{{Err: model.BackendFailure(raw.Path, raw.Err)}}
}

func (d *Debouncer) merge(raw model.RawEvent, op model.Op, now time.Time) []model.Result {
	var out []model.Result
	if e, ok := d.pending[raw.Path]; ok && d.halfAfter(raw.Path, e.seq) {
		// an unpaired rename half sits between the pending changes and this
		// one; close the earlier entry so the half cannot overtake it
		out = append(out, model.Result{Event: d.pendingEvent(raw.Path, e)})
		delete(d.pending, raw.Path)
	}

	if e, ok := d.pending[raw.Path]; ok {
		e.op |= op
		e.lastSeen = now
		if raw.Entry != model.EntryUnknown {
			e.entry = raw.Entry
		}
		if raw.Size != nil {
			e.size = raw.Size
		}
		if raw.ProcessID != 0 {
			e.pid = raw.ProcessID
		}
		d.metrics.EventCoalesced()
		return nil
	}

	d.seq++
	d.pending[raw.Path] = &pendingEntry{
		op:        op,
		firstSeen: now,
		lastSeen:  now,
		seq:       d.seq,
		entry:     raw.Entry,
		size:      raw.Size,
		pid:       raw.ProcessID,
	}

	if !d.notice || op.Has(model.OpRescan) {
		return out
	}

	notice := d.newEvent(model.Classify(op, d.precise, raw.Entry), raw.Path)
	notice.Attrs.Flag = model.FlagNotice
	notice.Attrs.ProcessID = raw.ProcessID
	d.metrics.EventEmitted("notice")
	return append(out, model.Result{Event: notice})
}

// halfAfter reports whether an unpaired rename half on path was observed
// after seq.
func (d *Debouncer) halfAfter(path string, seq uint64) bool {
	for _, h := range d.renames {
		if h.path == path && h.seq > seq {
			return true
		}
	}
	return false
}

func (d *Debouncer) ingestRename(raw model.RawEvent, now time.Time) []model.Result {
	half, ok := d.renames[raw.Cookie]
	if ok && half.path == raw.Path {
		d.logger.Debug("Duplicate rename half ignored", "path", raw.Path, "cookie", raw.Cookie)
		return nil
	}

	if !ok {
		side := raw.Side
		if side == model.SideUnknown {
			side = model.SideFrom
		}
		d.seq++
		d.renames[raw.Cookie] = &renameHalf{
			path:   raw.Path,
			side:   side,
			expiry: now.Add(d.interval),
			seen:   now,
			seq:    d.seq,
			entry:  raw.Entry,
			pid:    raw.ProcessID,
		}
		return nil
	}

	delete(d.renames, raw.Cookie)

	from, to := half.path, raw.Path
	if half.side == model.SideTo && raw.Side != model.SideTo {
		from, to = raw.Path, half.path
	}

	// changes observed before the rename go out ahead of it; changes on the
	// first half's path that arrived after that half stay pending
	out := d.flushBefore(map[string]uint64{
		half.path: half.seq,
		raw.Path:  d.seq + 1,
	})

	kind := model.KindAny()
	if d.precise {
		kind = model.KindRename(model.RenameBoth)
	}
	ev := d.newEvent(kind, from, to)
	ev.Attrs.Tracker = raw.Cookie
	ev.Attrs.ProcessID = raw.ProcessID
	if d.precise {
		ts := now
		ev.Attrs.Timestamp = &ts
	}

	d.metrics.RenamePaired()
	d.metrics.EventEmitted(kind.String())
	return append(out, model.Result{Event: ev})
}

// Tick flushes every pending path whose window has elapsed, every pending
// removal, and every rename half whose pairing window expired.
func (d *Debouncer) Tick(now time.Time) []model.Result {
	var ready []due

	for path, e := range d.pending {
		if now.Sub(e.firstSeen) >= d.interval || isTerminalOp(e.op) {
			ready = append(ready, due{seq: e.seq, result: model.Result{Event: d.pendingEvent(path, e)}})
			delete(d.pending, path)
		}
	}

	for cookie, h := range d.renames {
		if !now.Before(h.expiry) {
			ready = append(ready, due{seq: h.seq, result: model.Result{Event: d.expiredHalfEvent(cookie, h)}})
			delete(d.renames, cookie)
		}
	}

	d.metrics.PendingEntries(d.Pending())
	return sortDue(ready)
}

// Drain flushes all state regardless of age.
func (d *Debouncer) Drain() []model.Result {
	ready := make([]due, 0, d.Pending())
	for path, e := range d.pending {
		ready = append(ready, due{seq: e.seq, result: model.Result{Event: d.pendingEvent(path, e)}})
	}
	for cookie, h := range d.renames {
		ready = append(ready, due{seq: h.seq, result: model.Result{Event: d.expiredHalfEvent(cookie, h)}})
	}
	d.pending = make(map[string]*pendingEntry)
	d.renames = make(map[uint32]*renameHalf)
	d.metrics.PendingEntries(0)
	return sortDue(ready)
}

// Configure applies an engine option. It must be called from the goroutine
// owning the state; use Apply while Run is active.
func (d *Debouncer) Configure(option model.Config) bool {
	switch opt := option.(type) {
	case model.PreciseEvents:
		d.precise = bool(opt)
		return true
	case model.NoticeEvents:
		d.notice = bool(opt)
		return true
	case model.OngoingEvents:
		if opt.Duration() <= 0 {
			return false
		}
		d.interval = opt.Duration()
		return true
	default:
		return false
	}
}

// Apply hands option to the Run loop and waits for the outcome. A cancelled
// ctx means the owner is shutting down and reports model.ErrChannelClosed.
func (d *Debouncer) Apply(ctx context.Context, option model.Config) (bool, error) {
	req := configRequest{option: option, reply: make(chan bool, 1)}

	select {
	case d.configCh <- req:
	case <-d.done:
		return false, model.ErrChannelClosed
	case <-ctx.Done():
		return false, model.ErrChannelClosed
	}

	select {
	case accepted := <-req.reply:
		return accepted, nil
	case <-d.done:
		return false, model.ErrChannelClosed
	case <-ctx.Done():
		return false, model.ErrChannelClosed
	}
}

// Done is closed once Run has returned.
func (d *Debouncer) Done() <-chan struct{} {
	return d.done
}

// Run owns the engine state until ctx is cancelled or in is closed. When the
// backend closes in, pending state is drained and, unless a backend failure
// was already reported, model.ErrChannelClosed is delivered last.
func (d *Debouncer) Run(ctx context.Context, in <-chan model.RawEvent, out chan<- model.Result) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				results := d.Drain()
				if !d.sawTerminal {
					results = append(results, model.Result{Err: model.ErrChannelClosed})
				}
				d.emit(ctx, out, results)
				d.logger.Debug("Raw event channel closed, debouncer stopped")
				return
			}
			if !d.emit(ctx, out, d.Ingest(raw, d.now())) {
				return
			}

		case <-ticker.C:
			if !d.emit(ctx, out, d.Tick(d.now())) {
				return
			}

		case req := <-d.configCh:
			previous := d.interval
			accepted := d.Configure(req.option)
			if d.interval != previous {
				d.logger.Info("Debounce interval changed", "from", previous, "to", d.interval)
				ticker.Reset(d.interval)
			}
			req.reply <- accepted

		case <-ctx.Done():
			d.logger.Debug("Debouncer stopped")
			return
		}
	}
}

func (d *Debouncer) emit(ctx context.Context, out chan<- model.Result, results []model.Result) bool {
	for _, r := range results {
		select {
		case out <- r:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (d *Debouncer) newEvent(kind model.EventKind, paths ...string) model.Event {
	// an empty path stands for the whole watch set, not a path
	if len(paths) == 1 && paths[0] == "" {
		paths = nil
	}
	ev := model.NewEvent(kind, paths...)
	ev.Attrs.Source = d.source
	return ev
}

func (d *Debouncer) pendingEvent(path string, e *pendingEntry) model.Event {
	kind := model.Classify(e.op, d.precise, e.entry)
	ev := d.newEvent(kind, path)
	ev.Attrs.ProcessID = e.pid
	if e.op.Has(model.OpRescan) {
		ev.Attrs.Flag = model.FlagRescan
	}
	if d.precise {
		ev.Attrs.Size = e.size
		ts := e.lastSeen
		ev.Attrs.Timestamp = &ts
	}
	d.metrics.EventEmitted(kind.String())
	return ev
}

func (d *Debouncer) expiredHalfEvent(cookie uint32, h *renameHalf) model.Event {
	kind := model.ClassifyRenameHalf(h.side, d.precise, h.entry)
	ev := d.newEvent(kind, h.path)
	ev.Attrs.Tracker = cookie
	ev.Attrs.ProcessID = h.pid
	if d.precise {
		ts := h.seen
		ev.Attrs.Timestamp = &ts
	}
	d.metrics.RenameExpired()
	d.metrics.EventEmitted(kind.String())
	return ev
}

// flushBefore emits, for each path, its pending entry if it was first
// observed before the given sequence number.
func (d *Debouncer) flushBefore(bounds map[string]uint64) []model.Result {
	var ready []due
	for path, bound := range bounds {
		if e, ok := d.pending[path]; ok && e.seq < bound {
			ready = append(ready, due{seq: e.seq, result: model.Result{Event: d.pendingEvent(path, e)}})
			delete(d.pending, path)
		}
	}
	return sortDue(ready)
}

// discardTree drops all state at or below root. An empty root drops
// everything.
func (d *Debouncer) discardTree(root string) int {
	dropped := 0
	for path := range d.pending {
		if inTree(root, path) {
			delete(d.pending, path)
			dropped++
		}
	}
	for cookie, h := range d.renames {
		if inTree(root, h.path) {
			delete(d.renames, cookie)
			dropped++
		}
	}
	return dropped
}

func inTree(root, path string) bool {
	if root == "" || path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// isTerminalOp: a removal that was not followed by a re-creation does not
// need to wait out its window.
func isTerminalOp(op model.Op) bool {
	return op.Has(model.OpRemove) && !op.Has(model.OpCreate)
}

func sortDue(ready []due) []model.Result {
	if len(ready) == 0 {
		return nil
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
	out := make([]model.Result, len(ready))
	for i, r := range ready {
		out[i] = r.result
	}
	return out
}
