package page

import "errors"

// Error kinds per spec §7. All are returned, never panicked, except for
// the assertion-class invariant violations that indicate a programming
// error (spec §7 "aborts the operation"). Those panic instead, matching the
// teacher's own panic("Should never have a leaf as a parent") in
// leafNode.go for an equivalent can't-happen case.
var (
	// ErrCorruptPage covers page length mismatch, check-value mismatch,
	// unknown type byte, and varint overflow.
	ErrCorruptPage = errors.New("page: corrupt page")
	// ErrIOFault wraps an underlying storage failure.
	ErrIOFault = errors.New("page: io fault")
	// ErrUnsupportedFormat covers an unrecognized compression algorithm
	// or page variant.
	ErrUnsupportedFormat = errors.New("page: unsupported format")
)

// invariantViolation panics with a message identifying a programming
// error: an out-of-range index passed to Split, Remove, GetChildPage or
// CopyWithReplacedChild. A key/child length mismatch passed to Create is
// not a panic; Create returns it as ErrCorruptPage.
func invariantViolation(msg string) {
	panic("page: invariant violation: " + msg)
}
