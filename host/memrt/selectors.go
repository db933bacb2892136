package memrt

import (
	"sync"

	"github.com/joshuapare/objcload/host"
)

// SelectorArena is where canonical selector handles are allocated. It lies
// above any image a loader places, so a handle never aliases image memory.
const SelectorArena uint64 = 0x7f10_0000_0000

// selectorTable interns selector names to canonical handles. It is
// append-only; handles stay valid for the life of the runtime.
type selectorTable struct {
	mu     sync.RWMutex
	byName map[string]host.Selector
	byID   []string
}

func newSelectorTable() *selectorTable {
	return &selectorTable{
		byName: make(map[string]host.Selector),
		byID:   make([]string, 0, 256),
	}
}

func (st *selectorTable) intern(name string) host.Selector {
	st.mu.RLock()
	if sel, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return sel
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	if sel, ok := st.byName[name]; ok {
		return sel
	}
	sel := host.Selector(SelectorArena + uint64(len(st.byID))*8)
	st.byName[name] = sel
	st.byID = append(st.byID, name)
	return sel
}

func (st *selectorTable) name(sel host.Selector) (string, bool) {
	if uint64(sel) < SelectorArena || (uint64(sel)-SelectorArena)%8 != 0 {
		return "", false
	}
	id := (uint64(sel) - SelectorArena) / 8

	st.mu.RLock()
	defer st.mu.RUnlock()
	if id >= uint64(len(st.byID)) {
		return "", false
	}
	return st.byID[id], true
}

func (st *selectorTable) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}
