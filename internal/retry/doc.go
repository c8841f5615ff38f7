// Package retry drives one upload through its attempt budget.
//
// For each attempt the Controller makes sure the session is Ready, rewinds
// the source, and streams it. Permanent failures stop immediately with no
// reconnect; transient failures reconnect and try again until the budget is
// spent. Every decision goes through failure.ClassOf, so the kind chosen
// where an error was created is the only input.
package retry
