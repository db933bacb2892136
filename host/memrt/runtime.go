// Package memrt is an in-process implementation of host.Runtime.
//
// It keeps a class table and a selector table the way a real runtime does,
// and models the class_rw flag bits of the configured layout: a pair can only
// be registered while marked under construction, and only pairs built through
// the pair API can be disposed. Classes seeded with DefineClass behave like
// classes of images the system loader brought in.
//
// A Runtime is safe for concurrent use.
package memrt

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/metadata"
)

// ClassArena is where handles of classes seeded with DefineClass are
// allocated.
const ClassArena uint64 = 0x7f00_0000_0000

const classStride = 0x40

var (
	// ErrNameInUse is returned when a live class already has the name.
	ErrNameInUse = errors.New("memrt: class name in use")
	// ErrAlreadyRead is returned when a record is read into a pair twice.
	ErrAlreadyRead = errors.New("memrt: class record already read")
	// ErrNotMetaClass is returned when a record's isa is not a metaclass record.
	ErrNotMetaClass = errors.New("memrt: isa is not a metaclass")
)

type method struct {
	imp   uint64
	types string
}

type classEntry struct {
	handle  host.Class
	pair    host.Class // the metaclass of a class, the class of a metaclass
	super   host.Class
	name    string
	isMeta  bool
	live    bool
	flags   uint32
	methods map[host.Selector]method
}

// Runtime is an in-process Objective-C runtime.
type Runtime struct {
	mu       sync.RWMutex
	layout   abi.RuntimeLayout
	byName   map[string]*classEntry
	byHandle map[host.Class]*classEntry
	sels     *selectorTable
	next     uint64

	noInternals bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLayout selects the runtime layout whose flag bits are modelled.
func WithLayout(l abi.RuntimeLayout) Option {
	return func(rt *Runtime) { rt.layout = l }
}

// WithoutInternals makes Internals fail, as a runtime with an unknown
// private layout would.
func WithoutInternals() Option {
	return func(rt *Runtime) { rt.noInternals = true }
}

// New returns an empty runtime.
func New(opts ...Option) *Runtime {
	layout, _ := abi.LookupRuntimeLayout(abi.DefaultLayoutVersion)
	rt := &Runtime{
		layout:   layout,
		byName:   make(map[string]*classEntry),
		byHandle: make(map[host.Class]*classEntry),
		sels:     newSelectorTable(),
		next:     ClassArena,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

var _ host.Runtime = (*Runtime)(nil)

// DefineClass seeds a live class that did not come from a custom-loaded
// image. super must be live or host.Nil. Seeded classes are realized but not
// disposable.
func (rt *Runtime) DefineClass(name string, super host.Class) (host.Class, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.byName[name]; ok {
		return host.Nil, fmt.Errorf("%w: %s", ErrNameInUse, name)
	}
	var superMeta host.Class
	if super != host.Nil {
		e, ok := rt.byHandle[super]
		if !ok || !e.live || e.isMeta {
			return host.Nil, fmt.Errorf("%w: superclass 0x%x of %s", host.ErrUnknownClass, uint64(super), name)
		}
		superMeta = e.pair
	}

	cls := host.Class(rt.next)
	meta := host.Class(rt.next + classStride/2)
	rt.next += classStride
	if super == host.Nil {
		superMeta = cls
	}

	c, m := rt.newPair(name, cls, meta, super, superMeta)
	c.flags = rt.layout.RWRealized
	m.flags = rt.layout.RWRealized
	c.live, m.live = true, true
	rt.byName[name] = c
	return cls, nil
}

func (rt *Runtime) newPair(name string, cls, meta, super, superMeta host.Class) (*classEntry, *classEntry) {
	c := &classEntry{
		handle:  cls,
		pair:    meta,
		super:   super,
		name:    name,
		methods: make(map[host.Selector]method),
	}
	m := &classEntry{
		handle:  meta,
		pair:    cls,
		super:   superMeta,
		name:    name,
		isMeta:  true,
		methods: make(map[host.Selector]method),
	}
	rt.byHandle[cls] = c
	rt.byHandle[meta] = m
	return c, m
}

// LookupClass implements host.Runtime.
func (rt *Runtime) LookupClass(name string) host.Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if e, ok := rt.byName[name]; ok {
		return e.handle
	}
	return host.Nil
}

// LookupMetaClass implements host.Runtime.
func (rt *Runtime) LookupMetaClass(name string) host.Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if e, ok := rt.byName[name]; ok {
		return e.pair
	}
	return host.Nil
}

// ClassName implements host.Runtime.
func (rt *Runtime) ClassName(c host.Class) (string, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	e, ok := rt.byHandle[c]
	if !ok || !e.live {
		return "", false
	}
	return e.name, true
}

// IsMetaClass implements host.Runtime.
func (rt *Runtime) IsMetaClass(c host.Class) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	e, ok := rt.byHandle[c]
	return ok && e.live && e.isMeta
}

// IsRegistered implements host.Runtime.
func (rt *Runtime) IsRegistered(c host.Class) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	e, ok := rt.byHandle[c]
	return ok && e.live
}

// Classes implements host.Runtime. Names are sorted.
func (rt *Runtime) Classes() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	names := make([]string, 0, len(rt.byName))
	for name := range rt.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadClassPair implements host.Runtime. The class and metaclass handles are
// the record addresses; base methods of both records are imported, with
// method names uniqued through the selector table.
func (rt *Runtime) ReadClassPair(mem image.Memory, record uint64, super host.Class) (host.Class, error) {
	rec, err := metadata.ReadClass(mem, record)
	if err != nil {
		return host.Nil, err
	}
	metaRec, err := metadata.ReadClass(mem, rec.ISA)
	if err != nil {
		return host.Nil, fmt.Errorf("metaclass of %s: %w", rec.Name(), err)
	}
	if !metaRec.IsMeta() {
		return host.Nil, fmt.Errorf("%w: %s", ErrNotMetaClass, rec.Name())
	}
	instance, err := rt.importMethods(mem, rec.RO.BaseMethods)
	if err != nil {
		return host.Nil, fmt.Errorf("methods of %s: %w", rec.Name(), err)
	}
	classMethods, err := rt.importMethods(mem, metaRec.RO.BaseMethods)
	if err != nil {
		return host.Nil, fmt.Errorf("class methods of %s: %w", rec.Name(), err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	cls, meta := host.Class(record), host.Class(rec.ISA)
	if _, ok := rt.byHandle[cls]; ok {
		return host.Nil, fmt.Errorf("%w: 0x%x", ErrAlreadyRead, record)
	}
	if _, ok := rt.byHandle[meta]; ok {
		return host.Nil, fmt.Errorf("%w: metaclass 0x%x", ErrAlreadyRead, rec.ISA)
	}

	superMeta := cls
	if super != host.Nil {
		e, ok := rt.byHandle[super]
		if !ok || !e.live || e.isMeta {
			return host.Nil, fmt.Errorf("%w: superclass 0x%x of %s", host.ErrUnknownClass, uint64(super), rec.Name())
		}
		superMeta = e.pair
	}

	c, m := rt.newPair(rec.Name(), cls, meta, super, superMeta)
	c.methods = instance
	m.methods = classMethods
	return cls, nil
}

func (rt *Runtime) importMethods(mem image.Memory, list uint64) (map[host.Selector]method, error) {
	ml, err := metadata.ReadMethodList(mem, list)
	if err != nil {
		return nil, err
	}
	out := make(map[host.Selector]method, ml.Len())
	for _, m := range ml.Methods {
		sel := host.Selector(m.NameRef)
		if _, ok := rt.sels.name(sel); !ok {
			name, err := mem.CString(m.NameRef)
			if err != nil {
				return nil, fmt.Errorf("method name: %w", err)
			}
			sel = rt.sels.intern(name)
		}
		out[sel] = method{imp: m.IMP, types: m.Types}
	}
	return out, nil
}

// RegisterClassPair implements host.Runtime.
func (rt *Runtime) RegisterClassPair(c host.Class) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	e, ok := rt.byHandle[c]
	if !ok || e.isMeta {
		return fmt.Errorf("%w: 0x%x", host.ErrUnknownClass, uint64(c))
	}
	m := rt.byHandle[e.pair]
	if e.flags&rt.layout.RWConstructing == 0 || m.flags&rt.layout.RWConstructing == 0 {
		return fmt.Errorf("%w: %s", host.ErrNotConstructing, e.name)
	}
	if _, ok := rt.byName[e.name]; ok {
		return fmt.Errorf("%w: %s", ErrNameInUse, e.name)
	}

	for _, x := range []*classEntry{e, m} {
		x.flags &^= rt.layout.RWConstructing
		x.flags |= rt.layout.RWConstructed | rt.layout.RWRealized
		x.live = true
	}
	rt.byName[e.name] = e
	return nil
}

// DisposeClassPair implements host.Runtime. A pair that was read but never
// registered can always be disposed.
func (rt *Runtime) DisposeClassPair(c host.Class) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	e, ok := rt.byHandle[c]
	if !ok || e.isMeta {
		return fmt.Errorf("%w: 0x%x", host.ErrUnknownClass, uint64(c))
	}
	m := rt.byHandle[e.pair]
	mask := rt.layout.DisposableMask()
	if e.live && (e.flags&mask == 0 || m.flags&mask == 0) {
		return fmt.Errorf("%w: %s", host.ErrNotDisposable, e.name)
	}

	if cur, ok := rt.byName[e.name]; ok && cur == e {
		delete(rt.byName, e.name)
	}
	delete(rt.byHandle, e.handle)
	delete(rt.byHandle, m.handle)
	return nil
}

// RegisterSelector implements host.Runtime.
func (rt *Runtime) RegisterSelector(name string) host.Selector {
	return rt.sels.intern(name)
}

// SelectorName implements host.Runtime.
func (rt *Runtime) SelectorName(sel host.Selector) (string, bool) {
	return rt.sels.name(sel)
}

// Selectors returns the number of interned selectors.
func (rt *Runtime) Selectors() int {
	return rt.sels.len()
}

// AddMethod implements host.Runtime.
func (rt *Runtime) AddMethod(c host.Class, sel host.Selector, imp uint64, types string) bool {
	if _, ok := rt.sels.name(sel); !ok {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	e, ok := rt.byHandle[c]
	if !ok || !e.live {
		return false
	}
	if _, exists := e.methods[sel]; exists {
		return false
	}
	e.methods[sel] = method{imp: imp, types: types}
	return true
}

// Method returns the implementation c has for sel. Superclasses are not
// searched.
func (rt *Runtime) Method(c host.Class, sel host.Selector) (imp uint64, types string, ok bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	e, found := rt.byHandle[c]
	if !found {
		return 0, "", false
	}
	m, ok := e.methods[sel]
	return m.imp, m.types, ok
}

// Superclass returns the superclass of c, host.Nil for roots and unknown
// handles.
func (rt *Runtime) Superclass(c host.Class) host.Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if e, ok := rt.byHandle[c]; ok {
		return e.super
	}
	return host.Nil
}

// Flags returns the modelled class_rw flags of c.
func (rt *Runtime) Flags(c host.Class) uint32 {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if e, ok := rt.byHandle[c]; ok {
		return e.flags
	}
	return 0
}

// Internals implements host.Runtime.
func (rt *Runtime) Internals() (host.Internals, error) {
	if rt.noInternals {
		return nil, host.ErrNoInternals
	}
	return internals{rt: rt}, nil
}

type internals struct {
	rt *Runtime
}

func (in internals) Layout() abi.RuntimeLayout { return in.rt.layout }

func (in internals) MarkConstructing(c host.Class) error {
	in.rt.mu.Lock()
	defer in.rt.mu.Unlock()
	e, ok := in.rt.byHandle[c]
	if !ok {
		return fmt.Errorf("%w: 0x%x", host.ErrUnknownClass, uint64(c))
	}
	e.flags |= in.rt.layout.RWConstructing
	return nil
}
