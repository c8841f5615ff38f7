// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults, applies the FTP_* environment variables
// the upload scripts have always honoured, reads TOML files on top, and
// expands user paths (including tilde shortcuts). The Config type centralizes
// every knob the CLI and the upload pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and configuration errors tagged
// with failure.ErrConfiguration.
package config
