// Package failure defines the error taxonomy shared by the upload pipeline.
//
// Every failure is tagged with a Kind at the point it is created (dial, login,
// directory change, store, local read). The Kind maps to exactly one Class
// through a single table, so retry decisions downstream never re-inspect error
// strings or reply codes. Errors without a tag are treated as transient.
package failure
