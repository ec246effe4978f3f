// Package errs holds the closed set of sentinel errors the accelerator
// raises outside of a stop reason (spec.md §7 error taxonomy).
package errs

import "errors"

var (
	// ErrUnsupportedArch: no emulator mode for this architecture.
	ErrUnsupportedArch = errors.New("accel: unsupported architecture")
	// ErrSymbolicRefused: a register or flag value was refused by C2 and
	// sym_regs_support is off.
	ErrSymbolicRefused = errors.New("accel: symbolic value refused and sym_regs_support is off")
	// ErrInternalInvariant: NOSTART with a positive step count.
	ErrInternalInvariant = errors.New("accel: internal invariant violated (NOSTART with steps > 0)")
	// ErrUnavailable: the native emulator library could not be loaded.
	ErrUnavailable = errors.New("accel: native emulator unavailable")
	// ErrMixedPermissions: a page-bridge attempt spans pages with
	// different permissions under strict access.
	ErrMixedPermissions = errors.New("accel: mixed permissions in faulting range")
	// ErrAccessingZeroPage: all pages in range are missing under strict
	// access.
	ErrAccessingZeroPage = errors.New("accel: accessing entirely unmapped range under strict_page_access")
	// ErrFetchingZeroPage: a fetch access hit an entirely unmapped range.
	ErrFetchingZeroPage = errors.New("accel: fetching entirely unmapped range")
)
