package cortexm

import (
	"armdbg/log"
)

// writeDHCSR writes the control half of DHCSR and mirrors it in the local
// status copy.
func (c *Core) writeDHCSR(ctrl uint32) error {
	ctrl &= dhcsrCtrlMask
	if err := c.write(DCB_DHCSR, DBGKEY|ctrl); err != nil {
		return err
	}
	c.status.DHCSR = DHCSR(uint32(c.status.DHCSR)&^dhcsrCtrlMask | ctrl)
	return nil
}

// Interrupt masking to apply when halting, given the mask in place before a
// step (StepOnly restores it).
func (c *Core) maskForHalt(prev bool) bool {
	switch c.cfg.ISRMasking {
	case ISRMaskOn:
		return true
	case ISRMaskStepOnly:
		return prev
	}
	return false
}

func (c *Core) maskForStep() bool { return c.cfg.ISRMasking != ISRMaskOff }
func (c *Core) maskForRun() bool  { return c.cfg.ISRMasking == ISRMaskOn }

func maskBit(on bool) uint32 {
	if on {
		return C_MASKINTS
	}
	return 0
}

// waitStatus polls DHCSR until all bits of mask are set. On timeout the
// state is no longer trusted.
func (c *Core) waitStatus(mask uint32) error {
	for try := 1; ; try++ {
		st, err := c.ReadStatus()
		if err != nil {
			return err
		}
		if uint32(st.DHCSR)&mask == mask {
			return nil
		}
		if try >= c.cfg.PollRetries {
			c.status.Valid = false
			log.ModExec.WarnZ("status poll timed out").
				Hex32("dhcsr", uint32(st.DHCSR)).
				Hex32("mask", mask).
				Int("tries", try).
				End()
			return &TimeoutError{Reg: DCB_DHCSR, Mask: mask, Tries: try}
		}
		c.sleep(c.cfg.PollInterval)
	}
}

func (c *Core) lockupError() error {
	var pc uint32
	if c.lastHalt != nil {
		pc = c.lastHalt.PC
	}
	return &LockupError{PC: pc}
}

// checkHalted rejects op unless the core is known to be halted.
func (c *Core) checkHalted(op string) error {
	if err := c.checkExamined(); err != nil {
		return err
	}
	if !c.status.Halted() {
		return invalidRequest(op, 0, "core is %s", c.State())
	}
	return nil
}

// Halt requests debug state and waits for it, then reports why the core
// halted. Halting an already halted core only refreshes the report.
func (c *Core) Halt() (*HaltReport, error) {
	if err := c.checkExamined(); err != nil {
		return nil, err
	}
	mask := c.maskForHalt(c.status.DHCSR.CMaskInts())
	if err := c.writeDHCSR(C_DEBUGEN | C_HALT | maskBit(mask)); err != nil {
		return nil, err
	}
	if err := c.waitStatus(S_HALT); err != nil {
		return nil, err
	}
	return c.debugEntry()
}

// Resume leaves debug state. Breakpoints and watchpoints stay armed.
func (c *Core) Resume() error {
	if c.examined && c.lockedUp {
		return c.lockupError()
	}
	if err := c.checkHalted("resume"); err != nil {
		return err
	}
	if err := c.writeDHCSR(C_DEBUGEN | maskBit(c.maskForRun())); err != nil {
		return err
	}

	// The core no longer reports halted until the next status read.
	c.status.DHCSR = c.status.DHCSR.SetSHalt(false).SetSRegRdy(false)
	c.status.StickyRecent = false
	c.status.ResetSeen = false

	log.ModExec.DebugZ("resumed").Hex32("dhcsr", uint32(c.status.DHCSR)).End()
	return nil
}

// StepResult is the outcome of a single instruction step.
type StepResult struct {
	PC uint32

	// Interrupts were pending when the step started on a core where
	// masking does not apply to them: the step may have entered a handler.
	MaskingUnreliable bool

	Report *HaltReport
}

// Step executes one instruction and halts again.
func (c *Core) Step() (StepResult, error) {
	var res StepResult
	if c.examined && c.lockedUp {
		return res, c.lockupError()
	}
	if err := c.checkHalted("step"); err != nil {
		return res, err
	}

	prev := c.status.DHCSR.CMaskInts()
	mask := c.maskForStep()
	if mask && c.id.MaskIntsErratum {
		icsr, err := c.read(NVIC_ICSR)
		if err != nil {
			return res, err
		}
		if icsr&ICSR_ISRPENDING != 0 {
			res.MaskingUnreliable = true
			log.ModExec.WarnZ("interrupt pending, step may enter its handler").Hex32("icsr", icsr).End()
		}
	}

	if err := c.writeDHCSR(C_DEBUGEN | C_STEP | maskBit(mask)); err != nil {
		return res, err
	}
	c.status.DHCSR = c.status.DHCSR.SetSHalt(false)
	if err := c.waitStatus(S_HALT); err != nil {
		return res, err
	}
	if err := c.writeDHCSR(C_DEBUGEN | C_HALT | maskBit(c.maskForHalt(prev))); err != nil {
		return res, err
	}

	rep, err := c.debugEntry()
	if err != nil {
		return res, err
	}
	res.PC, res.Report = rep.PC, rep
	return res, nil
}

// ReadCoreReg reads a core register through DCRSR/DCRDR. The core must be
// halted.
func (c *Core) ReadCoreReg(num uint32) (uint32, error) {
	if err := c.checkHalted("read register"); err != nil {
		return 0, err
	}
	if err := c.write(DCB_DCRSR, num); err != nil {
		return 0, err
	}
	if err := c.waitRegReady(); err != nil {
		return 0, err
	}
	return c.read(DCB_DCRDR)
}

// WriteCoreReg writes a core register through DCRDR/DCRSR. The core must be
// halted.
func (c *Core) WriteCoreReg(num, val uint32) error {
	if err := c.checkHalted("write register"); err != nil {
		return err
	}
	if err := c.write(DCB_DCRDR, val); err != nil {
		return err
	}
	if err := c.write(DCB_DCRSR, num|DCRSR_WNR); err != nil {
		return err
	}
	return c.waitRegReady()
}

// waitRegReady waits for S_REGRDY. Transfers usually complete before the
// first status read; once one did not, the core is polled with delays for
// the rest of the session.
func (c *Core) waitRegReady() error {
	if !c.slowRegRead {
		st, err := c.ReadStatus()
		if err != nil {
			return err
		}
		if st.DHCSR.SRegRdy() {
			return nil
		}
		c.slowRegRead = true
		log.ModExec.DebugZ("register transfer not ready, switching to slow path").End()
	}
	for try := 1; ; try++ {
		c.sleep(c.cfg.PollInterval)
		st, err := c.ReadStatus()
		if err != nil {
			return err
		}
		if st.DHCSR.SRegRdy() {
			return nil
		}
		if try >= c.cfg.PollRetries {
			c.status.Valid = false
			return &TimeoutError{Reg: DCB_DHCSR, Mask: S_REGRDY, Tries: try}
		}
	}
}

// ResetHalt resets the core and halts it on the reset vector. Comparators
// are written back after the reset.
func (c *Core) ResetHalt() (*HaltReport, error) {
	if err := c.checkExamined(); err != nil {
		return nil, err
	}

	if err := c.write(DCB_DEMCR, c.demcr|TRCENA|VC_CORERESET); err != nil {
		return nil, err
	}

	// Flush stale reset indications so the wait below sees this reset.
	if _, err := c.ReadStatus(); err != nil {
		return nil, err
	}
	c.status.ResetSeen = false

	req := uint32(AIRCR_SYSRESETREQ)
	if c.cfg.SoftReset == VectReset {
		if c.id.Arch == ArchV7M {
			req = AIRCR_VECTRESET
		} else {
			log.ModExec.WarnZ("VECTRESET only exists on ARMv7-M, using SYSRESETREQ").Stringer("arch", c.id.Arch).End()
		}
	}
	log.ModExec.InfoZ("reset").Hex32("aircr", AIRCR_VECTKEY|req).End()
	if err := c.write(NVIC_AIRCR, AIRCR_VECTKEY|req); err != nil {
		return nil, err
	}
	// Unknown until the first status read after the reset.
	c.status.Valid = false

	for try := 1; ; try++ {
		st, err := c.ReadStatus()
		if err != nil {
			return nil, err
		}
		if st.ResetSeen && st.DHCSR.SHalt() {
			break
		}
		if try >= c.cfg.PollRetries {
			c.status.Valid = false
			return nil, &TimeoutError{Reg: DCB_DHCSR, Mask: S_RESET_ST | S_HALT, Tries: try}
		}
		c.sleep(c.cfg.PollInterval)
	}

	if err := c.write(DCB_DEMCR, c.demcr); err != nil {
		return nil, err
	}
	if err := c.RestoreBreakpoints(); err != nil {
		return nil, err
	}
	if err := c.RestoreWatchpoints(); err != nil {
		return nil, err
	}
	return c.debugEntry()
}

// SetVectorCatch selects the exceptions that halt the core on entry.
func (c *Core) SetVectorCatch(vc VectorCatch) error {
	if err := c.checkExamined(); err != nil {
		return err
	}
	demcr := c.demcr&^vcMask | uint32(vc)&vcMask | TRCENA
	if err := c.write(DCB_DEMCR, demcr); err != nil {
		return err
	}
	c.demcr, c.vcatch = demcr, vc
	return nil
}

func (c *Core) VectorCatch() VectorCatch { return c.vcatch }
