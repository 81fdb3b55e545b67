package cortexm

import (
	stderrors "errors"
	"strings"

	"armdbg/log"
)

// Cause is a set of reasons for a halt. The low bits mirror DFSR.
type Cause uint32

const (
	CauseHaltRequest Cause = DFSR_HALTED
	CauseBreakpoint  Cause = DFSR_BKPT
	CauseWatchpoint  Cause = DFSR_DWTTRAP
	CauseVectorCatch Cause = DFSR_VCATCH
	CauseExternal    Cause = DFSR_EXTERNAL
	CauseLockup      Cause = 1 << 8
)

var causeNames = []struct {
	c    Cause
	name string
}{
	{CauseHaltRequest, "halt"},
	{CauseBreakpoint, "breakpoint"},
	{CauseWatchpoint, "watchpoint"},
	{CauseVectorCatch, "vector-catch"},
	{CauseExternal, "external"},
	{CauseLockup, "lockup"},
}

func (c Cause) Has(x Cause) bool { return c&x != 0 }

func (c Cause) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for _, cn := range causeNames {
		if c&cn.c != 0 {
			names = append(names, cn.name)
		}
	}
	return strings.Join(names, "|")
}

//go:generate go tool stringer -type=FaultKind

type FaultKind int

const (
	NoFault FaultKind = iota
	HardFault
	MemManageFault
	BusFault
	UsageFault
	SecureFault
)

// FaultInfo is the fault state captured when a vector catch stops the core
// on a fault handler.
type FaultInfo struct {
	Kind FaultKind

	CFSR uint32
	HFSR uint32
	SFSR uint32

	// Faulting data address, only meaningful when AddrValid is set.
	Addr      uint32
	AddrValid bool

	// HardFault escalated from a configurable fault, CFSR holds the
	// original cause.
	Forced bool
}

// HaltReport describes why and where the core halted.
type HaltReport struct {
	Causes Cause

	PC uint32
	// PC with the halt address erratum applied, equal to PC otherwise.
	CorrectedPC uint32
	XPSR        uint32
	Exception   uint32 // active exception number, IPSR

	// Set for lockup. The session cannot go on without a reset.
	Fatal bool

	Fault       *FaultInfo
	Watchpoints []Handle

	DHCSR uint32
	DFSR  uint32
	ICSR  uint32
}

// HaltReason returns the report of the most recent halt, nil if the core
// has not halted under debugger control yet.
func (c *Core) HaltReason() *HaltReport { return c.lastHalt }

// Poll reads the debug status and, when the core halted on its own (hit a
// breakpoint, caught a vector), decodes the halt. It returns nil while the
// core runs.
func (c *Core) Poll() (*HaltReport, error) {
	if err := c.checkExamined(); err != nil {
		return nil, err
	}
	wasHalted := c.status.Halted()
	st, err := c.ReadStatus()
	if err != nil {
		return nil, err
	}
	switch {
	case !st.Halted() && st.DHCSR.SLockup():
		// A locked up core makes no progress: stop it and report.
		log.ModExec.WarnZ("locked up while running, halting").Hex32("dhcsr", uint32(st.DHCSR)).End()
		rep, err := c.Halt()
		if err != nil {
			return nil, stderrors.Join(c.lockupError(), err)
		}
		return rep, nil
	case !st.Halted():
		return nil, nil
	case wasHalted && c.lastHalt != nil:
		return c.lastHalt, nil
	}
	return c.debugEntry()
}

// debugEntry gathers the halt report once the core is in debug state.
func (c *Core) debugEntry() (*HaltReport, error) {
	rep := &HaltReport{DHCSR: uint32(c.status.DHCSR)}

	dfsr, err := c.read(NVIC_DFSR)
	if err != nil {
		return nil, err
	}
	if dfsr&dfsrMask != 0 {
		if err := c.write(NVIC_DFSR, dfsr&dfsrMask); err != nil {
			return nil, err
		}
	}
	icsr, err := c.read(NVIC_ICSR)
	if err != nil {
		return nil, err
	}
	c.status.DFSR, c.status.ICSR = dfsr, icsr
	rep.DFSR, rep.ICSR = dfsr, icsr
	rep.Causes = Cause(dfsr & dfsrMask)

	if c.lockedUp {
		rep.Causes |= CauseLockup
		rep.Fatal = true
	}

	if rep.PC, err = c.ReadCoreReg(RegPC); err != nil {
		return nil, err
	}
	if rep.XPSR, err = c.ReadCoreReg(RegXPSR); err != nil {
		return nil, err
	}
	rep.CorrectedPC = rep.PC
	rep.Exception = rep.XPSR & icsrVectActiveMsk

	if rep.Causes.Has(CauseVectorCatch) && rep.Exception >= 3 && rep.Exception <= 7 {
		if rep.Fault, err = c.readFault(rep.Exception); err != nil {
			return nil, err
		}
	}
	if rep.Causes.Has(CauseBreakpoint) && c.id.IncorrectHaltErratum {
		if rep.CorrectedPC, err = c.correctHaltPC(rep); err != nil {
			return nil, err
		}
	}
	if rep.Causes.Has(CauseWatchpoint) {
		if rep.Watchpoints, err = c.MatchedWatchpoints(); err != nil {
			return nil, err
		}
	}

	c.lastHalt = rep
	log.ModExec.DebugZ("halted").
		Stringer("cause", rep.Causes).
		Hex32("pc", rep.PC).
		Hex32("xpsr", rep.XPSR).
		Hex32("dfsr", dfsr).
		End()
	if rep.Fault != nil {
		log.ModExec.InfoZ("fault").
			Stringer("kind", rep.Fault.Kind).
			Hex32("cfsr", rep.Fault.CFSR).
			Hex32("hfsr", rep.Fault.HFSR).
			Hex32("addr", rep.Fault.Addr).
			Bool("addr_valid", rep.Fault.AddrValid).
			End()
	}
	return rep, nil
}

// readFault reads the fault status registers for the fault handler the core
// stopped on. Address registers are only read when flagged valid.
func (c *Core) readFault(exception uint32) (*FaultInfo, error) {
	f := &FaultInfo{}
	var err error
	if f.CFSR, err = c.read(NVIC_CFSR); err != nil {
		return nil, err
	}
	if f.HFSR, err = c.read(NVIC_HFSR); err != nil {
		return nil, err
	}
	if c.id.SecurityExt {
		if f.SFSR, err = c.read(NVIC_SFSR); err != nil {
			return nil, err
		}
	}

	switch exception {
	case 3:
		f.Kind = HardFault
		f.Forced = f.HFSR&HFSR_FORCED != 0
	case 4:
		f.Kind = MemManageFault
	case 5:
		f.Kind = BusFault
	case 6:
		f.Kind = UsageFault
	case 7:
		f.Kind = SecureFault
	}

	mm := f.CFSR&CFSR_MMARVALID != 0
	bus := f.CFSR&CFSR_BFARVALID != 0
	sec := f.SFSR&SFSR_SFARVALID != 0
	var addrReg uint32
	switch f.Kind {
	case MemManageFault:
		if mm {
			addrReg = NVIC_MMFAR
		}
	case BusFault:
		if bus {
			addrReg = NVIC_BFAR
		}
	case SecureFault:
		if sec {
			addrReg = NVIC_SFAR
		}
	case HardFault:
		switch {
		case !f.Forced:
		case mm:
			addrReg = NVIC_MMFAR
		case bus:
			addrReg = NVIC_BFAR
		case sec:
			addrReg = NVIC_SFAR
		}
	}
	if addrReg != 0 {
		if f.Addr, err = c.read(addrReg); err != nil {
			return nil, err
		}
		f.AddrValid = true
	}
	return f, nil
}

// correctHaltPC works around the Cortex-M7 erratum where a breakpoint taken
// together with an exception entry halts on the handler instead of the
// breakpoint. The breakpoint address is then the stacked return address.
func (c *Core) correctHaltPC(rep *HaltReport) (uint32, error) {
	if rep.Exception == 0 || c.fpb.matchesPC(rep.PC) {
		return rep.PC, nil
	}
	sp, err := c.ReadCoreReg(RegSP)
	if err != nil {
		return rep.PC, err
	}
	ret, err := c.read(sp + 0x18)
	if err != nil {
		return rep.PC, err
	}
	log.ModExec.DebugZ("halt address corrected").Hex32("pc", rep.PC).Hex32("corrected", ret).End()
	return ret &^ 1, nil
}
