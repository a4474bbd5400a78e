// Package amperr defines the error taxonomy shared by every component of
// the protection pipeline, per the Error Handling Design: a precondition
// violation, a bounded-wait timeout, a hardware fault, a publish failure
// that is logged and dropped, and a fatal startup failure.
package amperr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("pkg: %w", ErrX) to attach
// context; test with errors.Is.
var (
	// ErrInvalidArgument marks a violated precondition on a public call
	// (nil window pointer, zero-length sample window). It is the
	// caller's bug.
	ErrInvalidArgument = errors.New("amperr: invalid argument")

	// ErrTimeout marks a mutex or blocking primitive that exceeded its
	// budget. The caller retries on the next cycle; it is never
	// escalated inside the core.
	ErrTimeout = errors.New("amperr: timeout")

	// ErrHardwareFailure marks a failed ADC read or GPIO write. The
	// current tick is skipped and the owning task continues.
	ErrHardwareFailure = errors.New("amperr: hardware failure")

	// ErrTransientPublish marks a failed network publisher call. Logged
	// only; the core never retries or queues for later delivery.
	ErrTransientPublish = errors.New("amperr: transient publish failure")

	// ErrFatal marks a startup initialization failure after which the
	// system is not safe to operate.
	ErrFatal = errors.New("amperr: fatal startup failure")
)

// Is reports whether err wraps target anywhere in its chain. Thin
// wrapper kept so callers only import this package for taxonomy checks.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
