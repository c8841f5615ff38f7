// Package preflight provides readiness checks for the FTP endpoint and the
// local directories ferry depends on.
//
// `ferry check` runs RunAll and prints one line per Result. CheckFTP walks
// the session lifecycle one step at a time so a failure names the step that
// broke (connect, login, directory, or NOOP) together with its failure kind.
package preflight
