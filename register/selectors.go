package register

import (
	"fmt"

	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/metadata"
)

// RegisterSelectors replaces every selector reference with the runtime's
// canonical selector of the same name. Slots already canonical are left
// alone.
func (s *Session) RegisterSelectors(slots []metadata.Slot) (FixupStats, error) {
	var st FixupStats
	if s.closed {
		return st, ErrClosed
	}
	for _, slot := range slots {
		st.Slots++
		cur, err := s.mem.ReadPtr(slot.Addr)
		if err != nil {
			return st, &SlotError{Stage: "selrefs", Addr: slot.Addr, Value: slot.Value, Cause: err}
		}
		if cur == 0 {
			st.Skipped++
			continue
		}
		name, err := s.selectorName(cur)
		if err != nil {
			return st, &SlotError{Stage: "selrefs", Addr: slot.Addr, Value: cur, Cause: err}
		}
		sel := s.rt.RegisterSelector(name)
		wrote, err := s.journal.write(s.mem, "selrefs", slot.Addr, cur, uint64(sel))
		if err != nil {
			return st, &SlotError{Stage: "selrefs", Addr: slot.Addr, Value: cur, Name: name, Cause: err}
		}
		if wrote {
			st.Rewritten++
		}
	}
	s.report.Selectors = st
	s.log.Debug("selectors registered", "slots", st.Slots, "rewritten", st.Rewritten)
	return st, nil
}

// selectorName reads the name behind a selector word: a canonical selector,
// or a C string in the image.
func (s *Session) selectorName(v uint64) (string, error) {
	if name, ok := s.rt.SelectorName(host.Selector(v)); ok {
		return name, nil
	}
	name, err := s.mem.CString(v)
	if err != nil {
		return "", fmt.Errorf("selector name: %w", err)
	}
	return name, nil
}
