package util

import "errors"

// Sentinel errors for the failure kinds the pipeline distinguishes
var (
	// ErrInputSkipped indicates an unreadable, empty, or unprobeable file.
	// Always non-fatal: the file is skipped and logged once.
	ErrInputSkipped = errors.New("input skipped")

	// ErrAmbiguityUnresolved indicates the operator declined or aborted a
	// prompt. The file is left untouched for the next run.
	ErrAmbiguityUnresolved = errors.New("ambiguity unresolved")

	// ErrStoreTransaction indicates the per-file commit failed. Fatal for
	// that file only; the scan continues.
	ErrStoreTransaction = errors.New("store transaction failed")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
