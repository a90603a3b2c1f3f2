package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// CLI / startup errors
	ErrEmptyBindAddr   = errors.New("bind address must not be empty")
	ErrInvalidBindAddr = errors.New("invalid bind address")
	ErrInvalidSeedAddr = errors.New("invalid seed address")

	// Wire codec errors
	ErrUnknownMessageType = errors.New("unknown wire message type")
	ErrMalformedMessage   = errors.New("malformed wire message")

	// Config errors
	ErrInvalidConfig = errors.New("invalid configuration value")
)
