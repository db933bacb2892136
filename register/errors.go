package register

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshuapare/objcload/host"
)

var (
	// ErrCollision matches every *CollisionError.
	ErrCollision = errors.New("register: class name collision")
	// ErrUnresolved matches every *UnresolvedError.
	ErrUnresolved = errors.New("register: unresolved superclasses")
	// ErrClassNotFound indicates a reference naming no live class.
	ErrClassNotFound = errors.New("register: class not found")
	// ErrAmbiguousReference indicates a superclass reference that is neither
	// a known class nor a known metaclass.
	ErrAmbiguousReference = errors.New("register: ambiguous superclass reference")
	// ErrIdentityConflict indicates a record seen both as a class and as a
	// metaclass.
	ErrIdentityConflict = errors.New("register: record is both class and metaclass")
	// ErrClosed indicates use of a session after Close.
	ErrClosed = errors.New("register: session closed")
)

// CollisionError reports a class whose name is already live.
type CollisionError struct {
	Name     string
	Record   uint64     // record that was not registered
	Existing host.Class // class already holding the name
}

// Error implements the error interface.
func (e *CollisionError) Error() string {
	return fmt.Sprintf("class %q at 0x%X collides with live class 0x%X", e.Name, e.Record, uint64(e.Existing))
}

// Unwrap returns ErrCollision.
func (e *CollisionError) Unwrap() error { return ErrCollision }

// UnresolvedError reports class-list entries whose superclass never became
// live.
type UnresolvedError struct {
	Names  []string
	Passes int
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d classes unresolved after %d passes: %s", len(e.Names), e.Passes, strings.Join(e.Names, ", "))
}

// Unwrap returns ErrUnresolved.
func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// SlotError reports a section slot a stage could not process.
type SlotError struct {
	Stage string // "selrefs", "classlist", "classrefs", "superrefs", "catlist"
	Addr  uint64 // slot address
	Value uint64 // slot value when read
	Name  string // class or selector name, when known
	Cause error
}

// Error implements the error interface.
func (e *SlotError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s slot 0x%X (value 0x%X, %s): %v", e.Stage, e.Addr, e.Value, e.Name, e.Cause)
	}
	return fmt.Sprintf("%s slot 0x%X (value 0x%X): %v", e.Stage, e.Addr, e.Value, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SlotError) Unwrap() error { return e.Cause }
