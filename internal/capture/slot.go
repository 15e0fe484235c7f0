// Package capture bridges browser file-chooser requests to native pickers and
// the camera, keeping at most one request outstanding.
package capture

import (
	"log/slog"
	"sync"
)

// Source is the OS action a pending capture is waiting on.
type Source int

const (
	SourceFile Source = iota
	SourceAnyFile
	SourceCamera
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceAnyFile:
		return "any-file"
	case SourceCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Result is what a capture resolves with. A zero Result means "no result".
type Result struct {
	Path string
}

var NoResult = Result{}

func (r Result) Empty() bool { return r.Path == "" }

// Callback receives exactly one Result per capture.
type Callback func(Result)

// Ticket identifies one Begin call. Resolutions carrying a stale ticket are
// ignored.
type Ticket uint64

type pending struct {
	ticket    Ticket
	callback  Callback
	source    Source
	transient string
}

// Slot holds at most one outstanding capture and guarantees each is resolved
// exactly once.
type Slot struct {
	mu   sync.Mutex
	next Ticket
	cur  *pending
	log  *slog.Logger
}

func NewSlot(log *slog.Logger) *Slot {
	if log == nil {
		log = slog.Default()
	}
	return &Slot{log: log}
}

// Begin stores a new capture. A capture still pending is first resolved with
// NoResult.
func (s *Slot) Begin(cb Callback, source Source) Ticket {
	s.mu.Lock()
	prev := s.cur
	s.next++
	t := s.next
	s.cur = &pending{ticket: t, callback: cb, source: source}
	s.mu.Unlock()

	if prev != nil {
		s.log.Debug("capture superseded", "ticket", prev.ticket, "by", t)
		deliver(prev, NoResult)
	}
	s.log.Debug("capture begin", "ticket", t, "source", source)
	return t
}

// Resolve delivers res to whatever capture is pending and clears the slot.
// It is a no-op when nothing is pending.
func (s *Slot) Resolve(res Result) bool {
	s.mu.Lock()
	p := s.cur
	s.cur = nil
	s.mu.Unlock()
	if p == nil {
		return false
	}
	s.log.Debug("capture resolve", "ticket", p.ticket, "empty", res.Empty())
	deliver(p, res)
	return true
}

// ResolveIf is Resolve restricted to the capture started with t.
func (s *Slot) ResolveIf(t Ticket, res Result) bool {
	s.mu.Lock()
	p := s.cur
	if p == nil || p.ticket != t {
		s.mu.Unlock()
		return false
	}
	s.cur = nil
	s.mu.Unlock()
	s.log.Debug("capture resolve", "ticket", t, "empty", res.Empty())
	deliver(p, res)
	return true
}

func (s *Slot) PeekSourceHint() (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0, false
	}
	return s.cur.source, true
}

// Current returns the ticket of the pending capture, if any.
func (s *Slot) Current() (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0, false
	}
	return s.cur.ticket, true
}

// Dispatch records the OS action now in flight for t, and for the camera the
// file it will write. It reports false if t is no longer pending.
func (s *Slot) Dispatch(t Ticket, source Source, transient string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || s.cur.ticket != t {
		return false
	}
	s.cur.source = source
	s.cur.transient = transient
	return true
}

func (s *Slot) TransientPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.transient
}

func deliver(p *pending, res Result) {
	if p.callback != nil {
		p.callback(res)
	}
}

func (s *Slot) peek(t Ticket) (Source, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil || s.cur.ticket != t {
		return 0, "", false
	}
	return s.cur.source, s.cur.transient, true
}
