package cortexm

import (
	"armdbg/log"
)

//go:generate go tool stringer -type=ExecState -trimprefix=State

// ExecState is the execution state of the core as derived from the last
// status read.
type ExecState int

const (
	StateUnknown ExecState = iota
	StateRunning
	StateHalted
	StateHaltedAfterReset
	StateStepping
)

// DebugStatus is the debug status snapshot of a core.
type DebugStatus struct {
	DHCSR DHCSR // last value read

	// Bitwise OR of every DHCSR value read since the last ClearSticky. The
	// hardware clears S_RESET_ST and S_RETIRE_ST on read, this is where they
	// survive.
	Sticky uint32

	// S_RESET_ST was read since the last resume.
	ResetSeen bool

	// DHCSR has been read at least once since the last resume or reset, so
	// the hardware sticky bits reflect recent events only.
	StickyRecent bool

	DFSR uint32 // cause of the last halt
	ICSR uint32 // interrupt control state at the last halt

	// False until the first successful read, and after any transport
	// error or timeout: the core state must be probed again.
	Valid bool
}

// State derives the execution state from the status bits.
func (s DebugStatus) State() ExecState {
	switch {
	case !s.Valid:
		return StateUnknown
	case s.DHCSR.SHalt() && s.ResetSeen:
		return StateHaltedAfterReset
	case s.DHCSR.SHalt():
		return StateHalted
	case s.DHCSR.CStep():
		return StateStepping
	}
	return StateRunning
}

func (s DebugStatus) Halted() bool {
	st := s.State()
	return st == StateHalted || st == StateHaltedAfterReset
}

// ctrl returns the control half of the last DHCSR value.
func (s DebugStatus) ctrl() uint32 {
	return uint32(s.DHCSR) & dhcsrCtrlMask
}

// Status returns the current snapshot without accessing the core.
func (c *Core) Status() DebugStatus { return c.status }

// State returns the execution state derived from the last status read.
func (c *Core) State() ExecState { return c.status.State() }

// ReadStatus reads DHCSR and accumulates its sticky bits.
func (c *Core) ReadStatus() (DebugStatus, error) {
	v, err := c.read(DCB_DHCSR)
	if err != nil {
		return c.status, err
	}
	c.updateStatus(v)
	return c.status, nil
}

func (c *Core) updateStatus(v uint32) {
	// Reading DHCSR cleared the hardware sticky bits: keep them right away.
	c.status.Sticky |= v
	c.status.DHCSR = DHCSR(v)
	c.status.StickyRecent = true
	c.status.Valid = true

	if v&S_RESET_ST != 0 {
		log.ModExec.DebugZ("core reset detected").Hex32("dhcsr", v).End()
		c.status.ResetSeen = true
		c.slowRegRead = false
		if v&S_LOCKUP == 0 {
			c.lockedUp = false
		}
	}
	if v&S_LOCKUP != 0 && !c.lockedUp {
		c.lockedUp = true
		log.ModExec.ErrorZ("core locked up").Hex32("dhcsr", v).End()
	}
}

// ClearSticky clears bits from the cumulative sticky copy. It is the only
// way these bits are cleared.
func (c *Core) ClearSticky(mask uint32) {
	c.status.Sticky &^= mask
}
