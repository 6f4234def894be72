package changeset

import "errors"

// Sentinel errors returned by this package. Wrap with fmt.Errorf("%w", ...)
// style wrapping for positional context; callers should match with
// errors.Is.
var (
	// ErrColumnIndexOutOfBounds reports a column index outside
	// [0, columnCount). This package has no per-column operation builder
	// with Set methods, and none of its functions return this error.
	ErrColumnIndexOutOfBounds = errors.New("changeset: column index out of bounds")

	// ErrBadRow is returned when a row's length does not match its
	// table's declared column count, when a row holds Undefined where the
	// operation forbids it, when a changeset-only or patchset-only method
	// is called on the other format, and by Reverse on a patchset.
	ErrBadRow = errors.New("changeset: row does not match table schema")

	// ErrBadSchema is returned by NewTableSchema when the PK ordinal
	// vector is malformed (duplicate or non-contiguous ordinals).
	ErrBadSchema = errors.New("changeset: malformed primary key ordinals")

	// Parser errors (component F).
	ErrTruncated       = errors.New("changeset: truncated input")
	ErrUnknownOpcode   = errors.New("changeset: unknown operation opcode")
	ErrUnknownValueTag = errors.New("changeset: unknown value tag")
	ErrBadColumnCount  = errors.New("changeset: bad column count")
	ErrMixedFormat     = errors.New("changeset: mixed changeset/patchset markers")
	ErrDuplicateKey    = errors.New("changeset: duplicate primary key in input")
	ErrInvalidMarker   = errors.New("changeset: invalid table marker byte")
)
