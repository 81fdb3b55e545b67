package cortexm

import (
	"fmt"

	"github.com/go-faster/errors"

	"armdbg/hw/hwio"
)

var (
	// ErrTransport is matched by every register access failure.
	ErrTransport = hwio.ErrTransport

	// ErrResourceExhausted is returned when no comparator is free. The caller
	// may retry after releasing one.
	ErrResourceExhausted = errors.New("no free comparator")

	// ErrInvalidRequest is returned for requests rejected before any register
	// access (misaligned address, unsupported length, wrong comparator kind,
	// stale handle, wrong core state).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout is returned when a polled status bit did not reach the
	// expected value within the configured number of retries.
	ErrTimeout = errors.New("timeout")

	// ErrLockup is returned once the core has locked up. It is fatal for the
	// debug session: only a reset clears it.
	ErrLockup = errors.New("core locked up")

	// ErrNotExamined is returned by operations that need Examine to have run.
	ErrNotExamined = fmt.Errorf("%w: core not examined", ErrInvalidRequest)
)

// RequestError describes a request rejected without touching the hardware.
type RequestError struct {
	Op     string
	Addr   uint32
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %08x: %s", e.Op, e.Addr, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

func invalidRequest(op string, addr uint32, format string, args ...any) error {
	return &RequestError{Op: op, Addr: addr, Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError reports which register and bits were polled.
type TimeoutError struct {
	Reg   uint32
	Mask  uint32
	Tries int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s & %08x not set after %d reads", RegName(e.Reg), e.Mask, e.Tries)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// LockupError is returned by every execution control request once the core
// entered lockup.
type LockupError struct {
	PC uint32
}

func (e *LockupError) Error() string {
	return fmt.Sprintf("core locked up at %08x, reset required", e.PC)
}

func (e *LockupError) Unwrap() error { return ErrLockup }
