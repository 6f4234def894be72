package varint

import "errors"

// ErrTruncated is returned by Decode when data ends mid-varint.
var ErrTruncated = errors.New("varint: truncated")

// ErrOverflow is returned by Decode when a varint would need more than
// ten bytes to represent a 64-bit magnitude.
var ErrOverflow = errors.New("varint: overflow")
