// Package sim simulates the debug-visible side of a Cortex-M core: the
// debug control block, FPB, DWT, fault status and security registers, a
// core register file and some RAM. The simulated core executes one
// halfword instruction per status read while running.
package sim

import (
	"armdbg/cortexm"
	"armdbg/hw/hwio"
	"armdbg/log"
)

var modSim = log.ModSim

const (
	scsBase = 0xE000E000
	dwtBase = 0xE0001000
	fpbBase = 0xE0002000

	numCoreRegs = cortexm.RegPSP + 1

	lockupPC = 0xEFFFFFFE
)

type dwtComp struct {
	comp, mask, function uint32
	matched              bool
}

// Core is a simulated core. It implements hwio.Bus.
type Core struct {
	Bus *hwio.Table
	cfg Config

	// System control space
	CPUID       hwio.Reg32 `hwio:"offset=0xD00,readonly"`
	ICSR        hwio.Reg32 `hwio:"offset=0xD04,rcb"`
	AIRCR       hwio.Reg32 `hwio:"offset=0xD0C,wcb"`
	CFSR        hwio.Reg32 `hwio:"offset=0xD28,wcb"`
	HFSR        hwio.Reg32 `hwio:"offset=0xD2C,wcb"`
	DFSR        hwio.Reg32 `hwio:"offset=0xD30,wcb"`
	MMFAR       hwio.Reg32 `hwio:"offset=0xD34"`
	BFAR        hwio.Reg32 `hwio:"offset=0xD38"`
	MPUCTRL     hwio.Reg32 `hwio:"offset=0xD94,rwmask=0x7"`
	SAUCTRL     hwio.Reg32 `hwio:"offset=0xDD0,rwmask=0x3"`
	SFSR        hwio.Reg32 `hwio:"offset=0xDE4,wcb"`
	SFAR        hwio.Reg32 `hwio:"offset=0xDE8"`
	DHCSR       hwio.Reg32 `hwio:"offset=0xDF0,rcb,pcb,wcb"`
	DCRSR       hwio.Reg32 `hwio:"offset=0xDF4,writeonly,wcb"`
	DCRDR       hwio.Reg32 `hwio:"offset=0xDF8"`
	DEMCR       hwio.Reg32 `hwio:"offset=0xDFC"`
	DSCSR       hwio.Reg32 `hwio:"offset=0xE08,wcb"`
	DAUTHSTATUS hwio.Reg32 `hwio:"offset=0xFB8,readonly"`

	// DWT
	DWTCTRL hwio.Reg32  `hwio:"bank=1,offset=0x0,rwmask=0x1"`
	CYCCNT  hwio.Reg32  `hwio:"bank=1,offset=0x4"`
	PCSR    hwio.Reg32  `hwio:"bank=1,offset=0x1C,readonly,rcb,pcb"`
	DWTComp hwio.Device `hwio:"bank=1,offset=0x20,size=0xF0,rcb,wcb"`
	DEVARCH hwio.Reg32  `hwio:"bank=1,offset=0xFBC,readonly"`

	// FPB
	FPCTRL  hwio.Reg32  `hwio:"bank=2,offset=0x0,wcb"`
	FPREMAP hwio.Reg32  `hwio:"bank=2,offset=0x4"`
	FPComp  hwio.Device `hwio:"bank=2,offset=0x8,size=0x238,rcb,wcb"`

	RAM hwio.Mem

	regs [numCoreRegs]uint32

	halted   bool
	haltReq  bool
	stepping bool
	haltIn   int // status reads before a halt or step completes

	regRdy bool
	regIn  int

	lockup   bool
	sleeping bool
	pending  uint32 // pending exception number, 0 if none

	// S_RESET_ST and S_RETIRE_ST since the last DHCSR read.
	sticky uint32

	fp  []uint32
	dwt []dwtComp
}

// New returns a simulated core fresh out of power-on reset.
func New(cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Core{
		Bus: hwio.NewTable(cfg.Name),
		cfg: cfg,
		fp:  make([]uint32, cfg.FPBCode+cfg.FPBLit),
		dwt: make([]dwtComp, cfg.DWTComp),
	}
	hwio.MustInitRegs(c)
	c.Bus.MapBank(scsBase, c, 0)
	c.Bus.MapBank(dwtBase, c, 1)
	c.Bus.MapBank(fpbBase, c, 2)
	if cfg.RAMSize != 0 {
		c.RAM.Name = "RAM"
		c.RAM.Data = make([]uint32, cfg.RAMSize/4)
		c.Bus.MapMem(cfg.RAMBase, &c.RAM)
	}

	c.CPUID.Value = cfg.CPUID
	c.DAUTHSTATUS.Value = cfg.DAuthStatus
	c.AIRCR.Value = 0xFA050000
	c.DEVARCH.Value = cfg.DWTDevArch
	c.DWTCTRL.Value = uint32(cfg.DWTComp) << 28
	if cfg.NoCycCnt {
		c.DWTCTRL.Value |= cortexm.DWT_CTRL_NOCYCCNT
		c.DWTCTRL.RoMask = ^uint32(0)
	}
	code, lit := uint32(cfg.FPBCode), uint32(cfg.FPBLit)
	c.FPCTRL.Value = uint32(cfg.FPBRev)<<28 | (code&0x70)<<8 | lit<<8 | (code&0xF)<<4
	c.regRdy = true

	c.Reset()
	modSim.InfoZ("simulated core created").
		String("name", cfg.Name).
		Hex32("cpuid", cfg.CPUID).
		Hex32("fp_ctrl", c.FPCTRL.Value).
		Hex32("dwt_ctrl", c.DWTCTRL.Value).
		End()
	return c, nil
}

func (c *Core) Config() Config { return c.cfg }

func (c *Core) Read32(addr uint32) (uint32, error) {
	return c.Bus.Read32(addr)
}

func (c *Core) Write32(addr, val uint32) error {
	return c.Bus.Write32(addr, val)
}

// Reset performs a system reset. Debug registers keep their value.
func (c *Core) Reset() {
	c.regs = [numCoreRegs]uint32{}
	c.regs[cortexm.RegSP] = c.cfg.ResetSP
	c.regs[cortexm.RegMSP] = c.cfg.ResetSP
	c.regs[cortexm.RegPC] = c.cfg.ResetPC
	c.regs[cortexm.RegXPSR] = 0x01000000

	c.halted, c.haltReq, c.stepping = false, false, false
	c.lockup, c.sleeping, c.pending = false, false, 0
	for _, r := range []*hwio.Reg32{&c.CFSR, &c.HFSR, &c.MMFAR, &c.BFAR, &c.SFSR, &c.SFAR, &c.MPUCTRL, &c.SAUCTRL} {
		r.Value = 0
	}
	if c.cfg.ResetClearsDebug {
		clear(c.fp)
		clear(c.dwt)
		c.FPCTRL.Value &^= cortexm.FP_CTRL_ENABLE
	}
	c.sticky |= cortexm.S_RESET_ST

	modSim.DebugZ("reset").Hex32("pc", c.cfg.ResetPC).End()

	dhcsr := c.DHCSR.Value
	switch {
	case dhcsr&cortexm.C_DEBUGEN == 0:
	case c.DEMCR.Value&cortexm.VC_CORERESET != 0:
		c.enterDebug(cortexm.DFSR_VCATCH)
	case dhcsr&cortexm.C_HALT != 0:
		c.enterDebug(cortexm.DFSR_HALTED)
	}
}

func (c *Core) Halted() bool { return c.halted }
func (c *Core) LockedUp() bool { return c.lockup }

// Reg returns a core register, numbered as in DCRSR.
func (c *Core) Reg(n uint32) uint32 { return c.regs[n] }

// SetReg sets a core register, numbered as in DCRSR.
func (c *Core) SetReg(n, val uint32) { c.regs[n] = val }

func (c *Core) PC() uint32 { return c.regs[cortexm.RegPC] }

// tick advances the simulation by one status read.
func (c *Core) tick() {
	if !c.regRdy {
		if c.regIn > 0 {
			c.regIn--
		} else {
			c.regRdy = true
		}
	}
	if c.halted {
		return
	}
	if c.DWTCTRL.Value&cortexm.DWT_CTRL_CYCCNTENA != 0 {
		c.CYCCNT.Value++
	}

	switch {
	case c.haltReq:
		if c.haltIn > 0 {
			c.haltIn--
			c.run()
			return
		}
		c.enterDebug(cortexm.DFSR_HALTED)
	case c.stepping:
		if c.haltIn > 0 {
			c.haltIn--
			return
		}
		c.stepping = false
		c.exec(true)
		if !c.halted {
			c.enterDebug(cortexm.DFSR_HALTED)
		}
	default:
		c.run()
	}
}

func (c *Core) run() {
	if c.lockup || c.halted {
		return
	}
	if c.sleeping && c.pending == 0 {
		return
	}
	c.exec(false)
}

func (c *Core) masked(step bool) bool {
	if c.DHCSR.Value&cortexm.C_MASKINTS == 0 {
		return false
	}
	return !(step && c.cfg.MaskIntsErratum)
}

// exec executes the instruction at PC, or takes the pending exception.
func (c *Core) exec(step bool) {
	c.sleeping = false
	pc := c.regs[cortexm.RegPC]

	if c.pending != 0 && !c.masked(step) {
		n := c.pending
		c.pending = 0
		c.exception(n)
		return
	}
	// The instruction a step starts on is executed even if a breakpoint
	// matches it.
	if !step && c.fpbMatch(pc) {
		c.enterDebug(cortexm.DFSR_BKPT)
		return
	}

	c.regs[cortexm.RegPC] = pc + 2
	c.sticky |= cortexm.S_RETIRE_ST

	hit := false
	for _, a := range c.cfg.Accesses {
		if a.PC == pc && c.dwtAccess(a) {
			hit = true
		}
	}
	if hit {
		c.enterDebug(cortexm.DFSR_DWTTRAP)
	}
}

func (c *Core) enterDebug(cause uint32) {
	c.halted = true
	c.haltReq, c.stepping = false, false
	c.sleeping = false
	c.DFSR.Value |= cause
	modSim.DebugZ("debug state").
		Hex32("cause", cause).
		Hex32("pc", c.regs[cortexm.RegPC]).
		End()
}

// vector catch bit for each fault exception
var vcatchBits = map[uint32]uint32{
	3: cortexm.VC_HARDERR,
	4: cortexm.VC_MMERR,
	5: cortexm.VC_BUSERR,
	6: cortexm.VC_STATERR | cortexm.VC_CHKERR | cortexm.VC_NOCPERR,
	7: cortexm.VC_HARDERR,
}

// exception stacks a basic frame and enters the handler of exception n.
func (c *Core) exception(n uint32) {
	sp := c.regs[cortexm.RegSP] - 0x20
	_ = c.Bus.Write32(sp+0x18, c.regs[cortexm.RegPC])
	_ = c.Bus.Write32(sp+0x1C, c.regs[cortexm.RegXPSR])
	c.regs[cortexm.RegSP] = sp
	c.regs[cortexm.RegXPSR] = c.regs[cortexm.RegXPSR]&^0x1FF | n
	c.regs[cortexm.RegPC] = c.cfg.HandlerBase + 0x10*n

	modSim.DebugZ("exception").Uint("num", uint64(n)).Hex32("sp", sp).End()

	if c.DHCSR.Value&cortexm.C_DEBUGEN != 0 && c.DEMCR.Value&vcatchBits[n] != 0 && !c.halted {
		c.enterDebug(cortexm.DFSR_VCATCH)
	}
}

// Fault describes a synchronous fault to raise.
type Fault struct {
	Exception uint32 // 3 HardFault ... 7 SecureFault

	CFSR, HFSR, SFSR  uint32
	MMFAR, BFAR, SFAR uint32
}

// TriggerFault raises a fault at the current instruction.
func (c *Core) TriggerFault(f Fault) {
	c.CFSR.Value |= f.CFSR
	c.HFSR.Value |= f.HFSR
	c.SFSR.Value |= f.SFSR
	if f.CFSR&cortexm.CFSR_MMARVALID != 0 {
		c.MMFAR.Value = f.MMFAR
	}
	if f.CFSR&cortexm.CFSR_BFARVALID != 0 {
		c.BFAR.Value = f.BFAR
	}
	if f.SFSR&cortexm.SFSR_SFARVALID != 0 {
		c.SFAR.Value = f.SFAR
	}
	c.exception(f.Exception)
}

// TriggerLockup makes the core lock up, as on a fault within the HardFault
// handler.
func (c *Core) TriggerLockup() {
	c.lockup = true
	c.regs[cortexm.RegPC] = lockupPC
	modSim.WarnZ("lockup").End()
}

// SetPending marks exception n (16 and up for interrupts) pending.
func (c *Core) SetPending(n uint32) { c.pending = n }

// Sleep puts the core in WFI sleep until an exception is pending.
func (c *Core) Sleep() { c.sleeping = true }

func (c *Core) fpbMatch(pc uint32) bool {
	if c.FPCTRL.Value&cortexm.FP_CTRL_ENABLE == 0 {
		return false
	}
	for _, v := range c.fp[:c.cfg.FPBCode] {
		if v&1 == 0 {
			continue
		}
		if c.cfg.FPBRev == 0 {
			base := v & 0x1FFFFFFC
			switch v >> 30 {
			case 1:
				if pc == base {
					return true
				}
			case 2:
				if pc == base+2 {
					return true
				}
			case 3:
				if pc == base || pc == base+2 {
					return true
				}
			}
			continue
		}
		if pc == v&^1 {
			return true
		}
	}
	return false
}

// dwtAccess matches a data access against the DWT comparators.
func (c *Core) dwtAccess(a DataAccess) bool {
	v8 := c.cfg.DWTDevArch&0x1FFFFF == cortexm.DWT_DEVARCH_ARMV8M_V2_0 ||
		c.cfg.DWTDevArch&0x1FFFFF == cortexm.DWT_DEVARCH_ARMV8M_V2_1

	hit := false
	for i := range c.dwt {
		d := &c.dwt[i]
		var size uint32
		var read, write bool
		if v8 {
			if d.function>>4&3 != 1 {
				continue
			}
			size = 1 << (d.function >> 10 & 3)
			switch d.function & 0xF {
			case 4:
				read, write = true, true
			case 5:
				write = true
			case 6:
				read = true
			}
		} else {
			size = 1 << (d.mask & 0x1F)
			switch d.function & 0xF {
			case 5:
				read = true
			case 6:
				write = true
			case 7:
				read, write = true, true
			}
		}
		if a.Write && !write || !a.Write && !read {
			continue
		}
		if a.Addr&^(size-1) == d.comp&^(size-1) {
			d.matched = true
			hit = true
		}
	}
	return hit
}
