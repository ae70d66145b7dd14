package core

import "errors"

// Sentinel errors. Configuration errors are fatal at load time and abort
// start-up; everything else is per-packet and recoverable by the caller.
var (
	// Configuration errors
	ErrConfigInvalid = errors.New("schc: invalid configuration")
	ErrUnknownField  = errors.New("schc: unknown field id")

	// Parse errors: caller treats the packet as unmatched
	ErrTruncated          = errors.New("schc: truncated header")
	ErrUnsupportedVariant = errors.New("schc: unsupported header variant")

	// Compression errors: caller transmits uncompressed
	ErrNoMatchingRule = errors.New("schc: no matching rule")
	ErrComputeFailed  = errors.New("schc: compute action failed")

	// Decompression errors: packet is unrecoverable
	ErrUnknownRuleID    = errors.New("schc: unknown rule id")
	ErrResidueUnderflow = errors.New("schc: residue underflow")
)
