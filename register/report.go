package register

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Report summarises a load. It is safe to marshal as JSON or, with
// MarshalReport, as canonical CBOR.
type Report struct {
	Session    string           `json:"session" cbor:"1,keyasint"`
	Image      string           `json:"image" cbor:"2,keyasint"`
	Selectors  FixupStats       `json:"selectors" cbor:"3,keyasint"`
	Passes     int              `json:"passes" cbor:"4,keyasint"`
	Classes    []ClassResult    `json:"classes" cbor:"5,keyasint"`
	ClassRefs  FixupStats       `json:"classrefs" cbor:"6,keyasint"`
	SuperRefs  FixupStats       `json:"superrefs" cbor:"7,keyasint"`
	Categories []CategoryResult `json:"categories" cbor:"8,keyasint"`
	Writes     int              `json:"writes" cbor:"9,keyasint"`
}

// Live returns the number of classes that ended up live.
func (r *Report) Live() int {
	n := 0
	for _, c := range r.Classes {
		if c.State == StateLive || c.Status == StateLive.String() {
			n++
		}
	}
	return n
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("register: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalReport serializes a report to canonical CBOR.
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a report from CBOR.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("register: unmarshal report: %w", err)
	}
	return &r, nil
}
