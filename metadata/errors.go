package metadata

import "errors"

var (
	// ErrTruncated indicates a record or list running past its mapping.
	ErrTruncated = errors.New("metadata: truncated record")
	// ErrNullPointer indicates a required pointer field holding zero.
	ErrNullPointer = errors.New("metadata: null pointer")
	// ErrSanityLimit indicates a count or length beyond the decoder's limits.
	ErrSanityLimit = errors.New("metadata: sanity limit exceeded")
	// ErrUnsupported indicates a list layout the decoder does not handle.
	ErrUnsupported = errors.New("metadata: unsupported layout")
)
