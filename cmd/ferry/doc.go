// Package main hosts the ferry CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into upload runs against
// the configured FTP server, connectivity checks, journal queries, buffer
// maintenance, and configuration scaffolding. It centralizes configuration
// resolution and logger setup so subcommands only deal with user-facing
// output.
//
// Keep this package lean: upload behaviour lives in internal/upload and the
// packages beneath it; commands here only assemble tasks and render results.
package main
