// Package journal persists upload runs and their outcomes in SQLite.
//
// The database lives at paths.state_dir/journal.db and is versioned through
// a schema_version table; a mismatch asks the operator to delete the file
// rather than migrating silently. Writes retry briefly on SQLITE_BUSY so a
// concurrent `ferry history` never fails an upload.
package journal
