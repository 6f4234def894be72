package wire

import "errors"

// ErrTruncated is returned by Decode when data ends mid-value.
var ErrTruncated = errors.New("wire: truncated value")

// ErrUnknownTag is returned by Decode when the leading type-tag byte is
// not one of the six defined Kind values.
var ErrUnknownTag = errors.New("wire: unknown value tag")
