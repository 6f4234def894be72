// Package changeset builds, parses, and serializes SQLite session-
// extension changeset and patchset payloads: the compact binary diff
// format sqlite3session_changeset() and sqlite3session_patchset() emit,
// and sqlite3changeset_apply() consumes, when recording and replaying
// row-level edits.
//
// First, skim the session extension's own format description at
// https://sqlite.org/sessionintro.html and
// https://www.sqlite.org/session/changeset_iter.html.
//
// This library speaks the wire format directly: it never opens, reads,
// or writes an actual SQLite database file, and it links nothing from
// SQLite itself. The caller supplies each table's schema (name, column
// count, primary-key ordinals) up front; changeset/patchset bytes carry
// no catalog of their own beyond that.
//
// A DiffSet accumulates pending row operations — insert, delete, update
// — against one or more tables, consolidating them the same way the
// reference session extension's in-memory hash table does, and Build
// serializes the result byte-for-byte compatibly. Parse does the
// reverse: given changeset or patchset bytes, it recovers a DiffSet
// whose pending operations mirror what produced them.
//
// DiffSet is not safe for concurrent mutation; callers needing
// concurrent ingestion should shard by table or serialize their own
// calls, the same way package sqldigest and cmd/changesetgen hand file
// contents to a single builder sequentially once read.
package changeset
