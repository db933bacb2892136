package register

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshuapare/objcload/host"
)

// State is the registration state of one class-list slot.
type State int

const (
	StatePending State = iota
	StateSuperclassUnresolved
	StateRegistering
	StateLive
	StateSkipped // collided and skipped under CollisionSkip
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSuperclassUnresolved:
		return "SUPERCLASS_UNRESOLVED"
	case StateRegistering:
		return "REGISTERING"
	case StateLive:
		return "LIVE"
	case StateSkipped:
		return "SKIPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// CollisionPolicy selects what happens when a class name is already live.
type CollisionPolicy int

const (
	// CollisionFail stops the batch with a *CollisionError.
	CollisionFail CollisionPolicy = iota
	// CollisionSkip leaves the record unregistered and continues.
	CollisionSkip
)

func (p CollisionPolicy) String() string {
	switch p {
	case CollisionFail:
		return "fail"
	case CollisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseCollisionPolicy parses "fail" or "skip". The empty string is
// CollisionFail.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return CollisionFail, nil
	case "skip":
		return CollisionSkip, nil
	default:
		return CollisionFail, fmt.Errorf("register: unknown collision policy %q", s)
	}
}

// Options configures a Session.
type Options struct {
	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger

	// MaxPasses bounds the resolver's passes over the class list. Zero
	// runs until a pass makes no progress.
	MaxPasses int

	// Collision selects the name collision policy.
	Collision CollisionPolicy
}

// Registration ties a class-list slot to the live class made from it.
type Registration struct {
	Slot   uint64
	Record uint64
	Meta   uint64
	Name   string
	Class  host.Class
}

// ClassResult is the outcome for one class-list slot.
type ClassResult struct {
	Name     string `json:"name" cbor:"1,keyasint"`
	Slot     uint64 `json:"slot" cbor:"2,keyasint"`
	Record   uint64 `json:"record" cbor:"3,keyasint"`
	State    State  `json:"-" cbor:"-"`
	Status   string `json:"state" cbor:"4,keyasint"`
	Attempts int    `json:"attempts" cbor:"5,keyasint"`
	Error    string `json:"error,omitempty" cbor:"6,keyasint,omitempty"`
}

// Retries returns how many times the slot was re-enqueued.
func (r ClassResult) Retries() int {
	if r.Attempts == 0 {
		return 0
	}
	return r.Attempts - 1
}

// FixupStats counts the slots of one rewriting stage.
type FixupStats struct {
	Slots     int `json:"slots" cbor:"1,keyasint"`
	Skipped   int `json:"skipped" cbor:"2,keyasint"`
	Rewritten int `json:"rewritten" cbor:"3,keyasint"`
}

// CategoryResult is the outcome of merging one category.
type CategoryResult struct {
	Name   string `json:"name" cbor:"1,keyasint"`
	Target string `json:"target" cbor:"2,keyasint"`
	Added  int    `json:"added" cbor:"3,keyasint"`
	Failed int    `json:"failed" cbor:"4,keyasint"`
	Error  string `json:"error,omitempty" cbor:"5,keyasint,omitempty"`
}

// OK reports whether every method of the category was added.
func (r CategoryResult) OK() bool { return r.Failed == 0 && r.Error == "" }
