// Package sqldigest adapts a small, PK-conjunction-only dialect of SQL
// DML text into patchset operations. It is not a general SQL parser: the
// grammar is exactly three statement forms, and a WHERE clause may only
// constrain primary-key columns with equality, matching what the
// session-extension's own patchset format can express.
//
// This is a convenience layer on top of the changeset package, not part
// of the wire format itself; it has no changeset-side counterpart
// because SQL DML text never carries old non-PK column values.
package sqldigest

import "errors"

var (
	// ErrUnknownTable is returned when a statement names a table the
	// caller's schema set does not contain.
	ErrUnknownTable = errors.New("sqldigest: unknown table")

	// ErrUnknownColumn is returned when a statement names a column not
	// present in the target table's schema.
	ErrUnknownColumn = errors.New("sqldigest: unknown column")

	// ErrBadLiteral is returned when a value literal cannot be lexed or
	// is out of range for its apparent type.
	ErrBadLiteral = errors.New("sqldigest: malformed literal")

	// ErrUnsupportedStatement is returned for any statement form outside
	// INSERT/UPDATE/DELETE, or a WHERE clause that constrains a non-PK
	// column, or is missing entirely on UPDATE/DELETE.
	ErrUnsupportedStatement = errors.New("sqldigest: unsupported statement")

	// ErrUnexpectedToken is returned by the lexer/parser for malformed
	// statement syntax not covered by the more specific errors above.
	ErrUnexpectedToken = errors.New("sqldigest: unexpected token")
)
