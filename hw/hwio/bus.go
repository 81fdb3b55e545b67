package hwio

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Bus is the word-level access primitive to the target debug registers. It
// is implemented by a transport (debug adapter) or by a register Table.
//
// Both methods are synchronous: they either complete or fail with an error
// wrapping ErrTransport.
type Bus interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, val uint32) error
}

var (
	// ErrTransport is wrapped by every register access failure.
	ErrTransport = errors.New("transport error")

	// ErrUnmapped is reported for accesses to addresses with no register.
	ErrUnmapped = errors.Wrap(ErrTransport, "unmapped address")

	// ErrAccess is reported for writes to read-only registers and reads from
	// write-only ones.
	ErrAccess = errors.Wrap(ErrTransport, "access violation")
)

// BusError describes a failed register access.
type BusError struct {
	Op   string // "read" or "write"
	Addr uint32
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s %08x: %v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Is makes any BusError match ErrTransport, whatever the underlying error is.
func (e *BusError) Is(target error) bool { return target == ErrTransport }

// ReadModifyWrite32 reads the register at addr, clears the clr bits, sets the
// set bits and writes the result back. The written value is returned.
func ReadModifyWrite32(b Bus, addr uint32, clr, set uint32) (uint32, error) {
	v, err := b.Read32(addr)
	if err != nil {
		return 0, err
	}
	v = v&^clr | set
	return v, b.Write32(addr, v)
}
