package config

import "errors"

// Sentinel errors for configuration loading.
var (
	// ErrParse wraps environment parsing failures.
	ErrParse = errors.New("config: failed to parse environment")

	// ErrUnknownStore is returned for an unsupported DYNCACHE_STORE.
	ErrUnknownStore = errors.New("config: unknown store backend")

	// ErrUnknownTagIndex is returned for an unsupported DYNCACHE_TAG_INDEX.
	ErrUnknownTagIndex = errors.New("config: unknown tag index backend")

	// ErrMissingSetting is returned when a selected backend lacks its connection URL.
	ErrMissingSetting = errors.New("config: missing required setting")

	// ErrProfiles wraps failures to read or validate response cache profiles.
	ErrProfiles = errors.New("config: invalid response cache profiles")
)
