package register

import (
	"errors"
	"fmt"

	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/metadata"
)

var errNoTarget = errors.New("category target is null")

// MergeCategories adds the methods of every listed category to its target
// class: instance methods to the class, class methods to the metaclass.
//
// Merging is not transactional. A method the runtime refuses is logged and
// counted, and the merge goes on; so does a category whose target cannot be
// resolved. The returned error is reserved for slots that cannot be read.
func (s *Session) MergeCategories(slots []metadata.Slot) ([]CategoryResult, error) {
	const stage = "catlist"
	if s.closed {
		return nil, ErrClosed
	}
	results := make([]CategoryResult, 0, len(slots))
	for _, slot := range slots {
		cur, err := s.mem.ReadPtr(slot.Addr)
		if err != nil {
			return results, &SlotError{Stage: stage, Addr: slot.Addr, Value: slot.Value, Cause: err}
		}
		if cur == 0 {
			continue
		}
		res := s.mergeCategory(cur)
		if !res.OK() {
			s.log.Warn("category merged with failures", "category", res.Name, "class", res.Target,
				"added", res.Added, "failed", res.Failed, "error", res.Error)
		} else {
			s.log.Debug("category merged", "category", res.Name, "class", res.Target, "added", res.Added)
		}
		results = append(results, res)
	}
	s.report.Categories = append(s.report.Categories, results...)
	return results, nil
}

func (s *Session) mergeCategory(addr uint64) CategoryResult {
	cat, err := metadata.ReadCategory(s.mem, addr)
	if err != nil {
		return CategoryResult{Error: err.Error()}
	}
	res := CategoryResult{Name: cat.Name}
	if cat.Class == 0 {
		res.Error = errNoTarget.Error()
		return res
	}
	name, ok := s.referentName(cat.Class)
	if !ok {
		res.Error = fmt.Sprintf("category target 0x%x: %v", cat.Class, ErrClassNotFound)
		return res
	}
	res.Target = name

	cls := s.rt.LookupClass(name)
	meta := s.rt.LookupMetaClass(name)
	if cls == host.Nil || meta == host.Nil {
		res.Error = fmt.Sprintf("%s: %v", name, ErrClassNotFound)
		return res
	}

	s.addMethods(&res, cls, cat.InstanceMethods)
	s.addMethods(&res, meta, cat.ClassMethods)
	return res
}

func (s *Session) addMethods(res *CategoryResult, c host.Class, list uint64) {
	ml, err := metadata.ReadMethodList(s.mem, list)
	if err != nil {
		res.Error = err.Error()
		return
	}
	for _, m := range ml.Methods {
		name, err := s.selectorName(m.NameRef)
		if err != nil {
			res.Failed++
			s.log.Warn("category method name unreadable", "category", res.Name, "method", hex(m.Addr), "error", err)
			continue
		}
		sel := s.rt.RegisterSelector(name)
		if !s.rt.AddMethod(c, sel, m.IMP, m.Types) {
			res.Failed++
			s.log.Warn("method not added", "category", res.Name, "class", res.Target, "selector", name)
			continue
		}
		res.Added++
	}
}
