package register

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/metadata"
)

// Session is the registration state of one image.
type Session struct {
	id   uuid.UUID
	mem  image.Memory
	rt   host.Runtime
	log  *slog.Logger
	opts Options

	internals host.Internals

	// Identity sets: class and metaclass record addresses, each mapped to
	// its index in regs. A record is in at most one of them.
	classes map[uint64]int
	metas   map[uint64]int

	regs    []Registration
	journal *Journal
	report  Report
	closed  bool
}

// NewSession returns a session registering classes from mem with rt.
func NewSession(mem image.Memory, rt host.Runtime, opts Options) *Session {
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		id:      id,
		mem:     mem,
		rt:      rt,
		log:     logger.With("session", id.String()),
		opts:    opts,
		classes: make(map[uint64]int),
		metas:   make(map[uint64]int),
		journal: NewJournal(),
		report:  Report{Session: id.String()},
	}
}

// ID returns the session identifier carried by its log records.
func (s *Session) ID() uuid.UUID { return s.id }

// Runtime returns the runtime classes are registered with.
func (s *Session) Runtime() host.Runtime { return s.rt }

// Journal returns the slot write journal.
func (s *Session) Journal() *Journal { return s.journal }

// Registrations returns the slot to live class correspondence in
// registration order.
func (s *Session) Registrations() []Registration {
	out := make([]Registration, len(s.regs))
	copy(out, s.regs)
	return out
}

// Live returns the classes the session made live and has not disposed.
func (s *Session) Live() []host.Class {
	out := make([]host.Class, 0, len(s.regs))
	for _, r := range s.regs {
		out = append(out, r.Class)
	}
	return out
}

// Report returns a snapshot of the session report.
func (s *Session) Report() *Report {
	r := s.report
	r.Classes = append([]ClassResult(nil), s.report.Classes...)
	r.Categories = append([]CategoryResult(nil), s.report.Categories...)
	r.Writes = s.journal.Len()
	return &r
}

// SetImageName labels the report.
func (s *Session) SetImageName(name string) { s.report.Image = name }

// IsClassRecord reports whether addr was registered as a class by this
// session.
func (s *Session) IsClassRecord(addr uint64) bool {
	_, ok := s.classes[addr]
	return ok
}

// IsMetaRecord reports whether addr was registered as a metaclass by this
// session.
func (s *Session) IsMetaRecord(addr uint64) bool {
	_, ok := s.metas[addr]
	return ok
}

// referentName names the class or metaclass v points at: a record of this
// session, a live runtime class, or an unregistered class record in the
// image.
func (s *Session) referentName(v uint64) (string, bool) {
	if i, ok := s.classes[v]; ok {
		return s.regs[i].Name, true
	}
	if i, ok := s.metas[v]; ok {
		return s.regs[i].Name, true
	}
	if name, ok := s.rt.ClassName(host.Class(v)); ok {
		return name, true
	}
	if s.mem.Contains(v) {
		if name, err := metadata.ClassName(s.mem, v); err == nil {
			return name, true
		}
	}
	return "", false
}
