// Package host defines the boundary between the registration engine and the
// Objective-C runtime it registers classes with.
//
// The engine never talks to a runtime directly. It is handed a Runtime, and
// for the two operations the public runtime API has no entry point for
// (marking a class pair as under construction, and knowing which flag bits
// that takes) it asks the Runtime for an Internals capability. Runtimes that
// cannot expose their private layout return ErrNoInternals, and the engine
// refuses to register rather than guessing.
package host

import (
	"errors"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
)

// Class is a live class or metaclass handle. For classes registered from an
// image the handle is the address of the class record itself.
type Class uint64

// Selector is a canonical selector handle.
type Selector uint64

// Nil is the absent class.
const Nil Class = 0

var (
	// ErrNoInternals is returned by runtimes that do not expose their
	// private class layout.
	ErrNoInternals = errors.New("host: runtime internals unavailable")
	// ErrNotConstructing is returned when a pair is registered without the
	// under-construction mark.
	ErrNotConstructing = errors.New("host: class pair not under construction")
	// ErrNotDisposable is returned when disposing a class the runtime did
	// not build through the pair API.
	ErrNotDisposable = errors.New("host: class pair not disposable")
	// ErrUnknownClass is returned for handles the runtime does not know.
	ErrUnknownClass = errors.New("host: unknown class")
)

// Runtime is the host Objective-C runtime.
type Runtime interface {
	// LookupClass returns the live class named name, or Nil.
	LookupClass(name string) Class
	// LookupMetaClass returns the metaclass of the live class named name,
	// or Nil.
	LookupMetaClass(name string) Class
	// ClassName returns the name of a live class or metaclass.
	ClassName(c Class) (string, bool)
	// IsMetaClass reports whether c is a live metaclass.
	IsMetaClass(c Class) bool
	// IsRegistered reports whether c is a live class or metaclass.
	IsRegistered(c Class) bool
	// Classes returns the names of all live classes.
	Classes() []string

	// ReadClassPair turns the class record at record, and the metaclass
	// record it points at, into a class pair in place. The records become
	// runtime-owned; nothing is copied. super is the resolved superclass,
	// Nil for a root class.
	ReadClassPair(mem image.Memory, record uint64, super Class) (Class, error)
	// RegisterClassPair makes a constructed pair live.
	RegisterClassPair(c Class) error
	// DisposeClassPair removes a pair built through the pair API.
	DisposeClassPair(c Class) error

	// RegisterSelector returns the canonical selector for name.
	RegisterSelector(name string) Selector
	// SelectorName returns the name of a canonical selector.
	SelectorName(sel Selector) (string, bool)
	// AddMethod adds a method to c. It returns false when c already
	// implements sel or c is unknown.
	AddMethod(c Class, sel Selector, imp uint64, types string) bool

	// Internals returns the private-layout capability.
	Internals() (Internals, error)
}

// Internals is scoped access to the runtime's private class layout.
type Internals interface {
	// Layout describes the flag bits the capability works with.
	Layout() abi.RuntimeLayout
	// MarkConstructing sets the under-construction bit on c.
	MarkConstructing(c Class) error
}
