package register

import (
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/metadata"
)

// FixClassRefs points every class reference at the live class of the same
// name. A reference naming no live class fails with ErrClassNotFound; zero
// slots are skipped.
func (s *Session) FixClassRefs(slots []metadata.Slot) (FixupStats, error) {
	const stage = "classrefs"
	var st FixupStats
	if s.closed {
		return st, ErrClosed
	}
	for _, slot := range slots {
		st.Slots++
		cur, err := s.mem.ReadPtr(slot.Addr)
		if err != nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: slot.Value, Cause: err}
		}
		if cur == 0 {
			st.Skipped++
			continue
		}
		name, ok := s.referentName(cur)
		if !ok {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Cause: ErrClassNotFound}
		}
		live := s.rt.LookupClass(name)
		if live == host.Nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Name: name, Cause: ErrClassNotFound}
		}
		wrote, err := s.journal.write(s.mem, stage, slot.Addr, cur, uint64(live))
		if err != nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Name: name, Cause: err}
		}
		if wrote {
			st.Rewritten++
		}
	}
	s.report.ClassRefs = st
	s.log.Debug("class refs fixed", "slots", st.Slots, "rewritten", st.Rewritten)
	return st, nil
}

type refKind int

const (
	refUnknown refKind = iota
	refClass
	refMeta
)

// FixSuperRefs points every superclass reference at the live class, or the
// live metaclass, of the same name. Whether a slot names a class or a
// metaclass comes from the session's identity sets, then from the runtime;
// a slot neither can classify fails with ErrAmbiguousReference.
func (s *Session) FixSuperRefs(slots []metadata.Slot) (FixupStats, error) {
	const stage = "superrefs"
	var st FixupStats
	if s.closed {
		return st, ErrClosed
	}
	for _, slot := range slots {
		st.Slots++
		cur, err := s.mem.ReadPtr(slot.Addr)
		if err != nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: slot.Value, Cause: err}
		}
		if cur == 0 {
			st.Skipped++
			continue
		}

		kind, name := s.classifySuperRef(cur)
		if kind == refUnknown {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Cause: ErrAmbiguousReference}
		}
		live := s.rt.LookupClass(name)
		if kind == refMeta {
			live = s.rt.LookupMetaClass(name)
		}
		if live == host.Nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Name: name, Cause: ErrClassNotFound}
		}
		wrote, err := s.journal.write(s.mem, stage, slot.Addr, cur, uint64(live))
		if err != nil {
			return st, &SlotError{Stage: stage, Addr: slot.Addr, Value: cur, Name: name, Cause: err}
		}
		if wrote {
			st.Rewritten++
		}
	}
	s.report.SuperRefs = st
	s.log.Debug("superclass refs fixed", "slots", st.Slots, "rewritten", st.Rewritten)
	return st, nil
}

func (s *Session) classifySuperRef(v uint64) (refKind, string) {
	if i, ok := s.classes[v]; ok {
		return refClass, s.regs[i].Name
	}
	if i, ok := s.metas[v]; ok {
		return refMeta, s.regs[i].Name
	}
	c := host.Class(v)
	if name, ok := s.rt.ClassName(c); ok {
		if s.rt.IsMetaClass(c) {
			return refMeta, name
		}
		return refClass, name
	}
	// A record the session never made live, e.g. one skipped on collision.
	if s.mem.Contains(v) {
		rec, err := metadata.ReadClass(s.mem, v)
		if err != nil || rec.Name() == "" {
			return refUnknown, ""
		}
		if rec.IsMeta() {
			return refMeta, rec.Name()
		}
		return refClass, rec.Name()
	}
	return refUnknown, ""
}
