package register

import (
	"errors"
	"fmt"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/metadata"
)

// entry is a class-list slot waiting in the resolver queue. The record is
// read through the slot every time the entry is dequeued, so a rewrite of
// the slot or the record between passes is observed.
type entry struct {
	slot     uint64
	record   uint64
	name     string
	state    State
	attempts int
	err      string
}

// RegisterClasses makes every class named by the class-list slots live,
// superclasses first.
//
// The queue is drained in passes. An entry whose superclass is not live yet
// goes to the next pass. A pass that registers nothing while entries remain
// ends the batch with *UnresolvedError, as does running out of
// Options.MaxPasses. Results come back in class-list order.
func (s *Session) RegisterClasses(slots []metadata.Slot) ([]ClassResult, error) {
	if s.closed {
		return nil, ErrClosed
	}

	results := make([]ClassResult, len(slots))
	queue := make([]int, 0, len(slots))
	entries := make([]*entry, len(slots))
	for i, slot := range slots {
		entries[i] = &entry{slot: slot.Addr, state: StatePending}
		queue = append(queue, i)
	}
	finish := func(err error) ([]ClassResult, error) {
		for i, e := range entries {
			results[i] = ClassResult{
				Name:     e.name,
				Slot:     e.slot,
				Record:   e.record,
				State:    e.state,
				Status:   e.state.String(),
				Attempts: e.attempts,
				Error:    e.err,
			}
		}
		s.report.Classes = append(s.report.Classes, results...)
		return results, err
	}

	passes := 0
	for len(queue) > 0 {
		if s.opts.MaxPasses > 0 && passes == s.opts.MaxPasses {
			return finish(s.unresolved(entries, queue, passes))
		}
		passes++
		s.report.Passes++

		var next []int
		progress := false
		for _, i := range queue {
			e := entries[i]
			e.attempts++
			ok, err := s.step(e)
			if err != nil {
				e.err = err.Error()
				var ce *CollisionError
				if errors.As(err, &ce) && s.opts.Collision == CollisionSkip {
					e.state = StateSkipped
					s.log.Warn("class skipped", "class", ce.Name, "record", hex(ce.Record), "existing", hex(uint64(ce.Existing)))
					progress = true
					continue
				}
				e.state = StateFailed
				s.log.Error("class registration failed", "class", e.name, "error", err)
				return finish(err)
			}
			if !ok {
				e.state = StateSuperclassUnresolved
				next = append(next, i)
				continue
			}
			progress = true
		}
		if !progress {
			return finish(s.unresolved(entries, next, passes))
		}
		queue = next
	}
	s.log.Info("classes registered", "classes", len(s.regs), "passes", passes)
	return finish(nil)
}

func (s *Session) unresolved(entries []*entry, queue []int, passes int) error {
	names := make([]string, 0, len(queue))
	for _, i := range queue {
		names = append(names, entries[i].name)
	}
	s.log.Error("unresolved superclasses", "classes", names, "passes", passes)
	return &UnresolvedError{Names: names, Passes: passes}
}

// step processes one dequeued entry. It returns false when the superclass
// is not live yet.
func (s *Session) step(e *entry) (bool, error) {
	record, err := s.mem.ReadPtr(e.slot)
	if err != nil {
		return false, &SlotError{Stage: "classlist", Addr: e.slot, Cause: err}
	}
	e.record = record
	if record == 0 {
		e.state = StateSkipped
		return true, nil
	}
	if i, ok := s.classes[record]; ok {
		// Already live from an earlier batch of this session.
		e.name = s.regs[i].Name
		e.state = StateLive
		return true, nil
	}

	rec, err := metadata.ReadClass(s.mem, record)
	if err != nil {
		return false, &SlotError{Stage: "classlist", Addr: e.slot, Value: record, Cause: err}
	}
	e.name = rec.Name()

	super, ok := s.resolveSuper(rec)
	if !ok {
		s.log.Debug("superclass not live", "class", e.name, "superclass", hex(rec.Superclass), "attempt", e.attempts)
		return false, nil
	}

	e.state = StateRegistering
	if err := s.registerOne(e.slot, rec, super); err != nil {
		return false, err
	}
	e.state = StateLive
	return true, nil
}

// resolveSuper finds the live superclass of rec.
func (s *Session) resolveSuper(rec metadata.ClassRecord) (host.Class, bool) {
	if rec.IsRoot() {
		return host.Nil, true
	}
	super := host.Class(rec.Superclass)
	if s.rt.IsRegistered(super) {
		return super, true
	}
	var name string
	if s.mem.Contains(rec.Superclass) {
		n, err := metadata.ClassName(s.mem, rec.Superclass)
		if err != nil {
			return host.Nil, false
		}
		name = n
	} else if n, ok := s.rt.ClassName(super); ok {
		name = n
	}
	if name == "" {
		return host.Nil, false
	}
	if live := s.rt.LookupClass(name); live != host.Nil {
		return live, true
	}
	return host.Nil, false
}

// registerOne makes rec live with super as its superclass.
func (s *Session) registerOne(slot uint64, rec metadata.ClassRecord, super host.Class) error {
	name := rec.Name()
	if existing := s.rt.LookupClass(name); existing != host.Nil {
		return &CollisionError{Name: name, Record: rec.Addr, Existing: existing}
	}

	if _, ok := s.metas[rec.Addr]; ok {
		return &SlotError{Stage: "classlist", Addr: slot, Value: rec.Addr, Name: name, Cause: ErrIdentityConflict}
	}
	if _, ok := s.classes[rec.ISA]; ok {
		return &SlotError{Stage: "classlist", Addr: slot, Value: rec.Addr, Name: name, Cause: ErrIdentityConflict}
	}

	in, err := s.runtimeInternals()
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	// The runtime reads the superclass from the records, so a superclass
	// resolved by name is stored back into the class and its metaclass.
	mark := s.journal.Len()
	undo := func(err error) error {
		if rerr := s.journal.rollback(s.mem, mark); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if super != host.Nil && uint64(super) != rec.Superclass {
		if err := s.storeSuper(rec, super); err != nil {
			return undo(&SlotError{Stage: "classlist", Addr: slot, Value: rec.Addr, Name: name, Cause: err})
		}
	}

	cls, err := s.rt.ReadClassPair(s.mem, rec.Addr, super)
	if err != nil {
		return undo(fmt.Errorf("read class pair %s: %w", name, err))
	}
	// Both halves are marked so the pair can be disposed later.
	if err := in.MarkConstructing(cls); err != nil {
		return undo(s.discard(cls, name, fmt.Errorf("mark %s: %w", name, err)))
	}
	if err := in.MarkConstructing(host.Class(rec.ISA)); err != nil {
		return undo(s.discard(cls, name, fmt.Errorf("mark metaclass %s: %w", name, err)))
	}
	if err := s.rt.RegisterClassPair(cls); err != nil {
		return undo(s.discard(cls, name, fmt.Errorf("register class pair %s: %w", name, err)))
	}

	idx := len(s.regs)
	s.regs = append(s.regs, Registration{Slot: slot, Record: rec.Addr, Meta: rec.ISA, Name: name, Class: cls})
	s.classes[rec.Addr] = idx
	s.metas[rec.ISA] = idx

	s.log.Info("registered class", "class", name, "record", hex(rec.Addr), "superclass", hex(uint64(super)))
	return nil
}

// storeSuper writes super into rec's superclass word and, when the
// metaclass record is in the image, super's metaclass into the metaclass
// record's superclass word.
func (s *Session) storeSuper(rec metadata.ClassRecord, super host.Class) error {
	if _, err := s.journal.write(s.mem, "classlist", rec.Addr+abi.ClassSuperclassOffset, rec.Superclass, uint64(super)); err != nil {
		return err
	}
	meta, err := metadata.ReadClass(s.mem, rec.ISA)
	if err != nil || !meta.IsMeta() {
		// Left for the runtime to reject when it reads the pair.
		return nil
	}
	superName, ok := s.rt.ClassName(super)
	if !ok {
		return nil
	}
	superMeta := s.rt.LookupMetaClass(superName)
	if superMeta == host.Nil {
		return nil
	}
	_, err = s.journal.write(s.mem, "classlist", meta.Addr+abi.ClassSuperclassOffset, meta.Superclass, uint64(superMeta))
	return err
}

// discard drops a pair that was read but never made live.
func (s *Session) discard(cls host.Class, name string, err error) error {
	if derr := s.rt.DisposeClassPair(cls); derr != nil {
		s.log.Debug("dispose after failed registration", "class", name, "error", derr)
		return errors.Join(err, derr)
	}
	return err
}

func (s *Session) runtimeInternals() (host.Internals, error) {
	if s.internals != nil {
		return s.internals, nil
	}
	in, err := s.rt.Internals()
	if err != nil {
		return nil, err
	}
	s.log.Debug("runtime internals", "layout", in.Layout().Version)
	s.internals = in
	return in, nil
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
