package sim

import (
	"armdbg/cortexm"
	"armdbg/hw/hwio"
)

// Bit numbers of the keyed control registers.
const (
	fpCtrlEnableBit = 0
	fpCtrlKeyBit    = 1
	dscsrCDSBit     = 16
	dscsrCDSKeyBit  = 17
)

// DHCSR

func (c *Core) status() uint32 {
	v := c.DHCSR.Value&0xFFFF | c.sticky
	if c.halted {
		v |= cortexm.S_HALT
	}
	if c.regRdy {
		v |= cortexm.S_REGRDY
	}
	if c.lockup {
		v |= cortexm.S_LOCKUP
	}
	if c.sleeping {
		v |= cortexm.S_SLEEP
	}
	return v
}

func (c *Core) ReadDHCSR(_ uint32) uint32 {
	c.tick()
	v := c.status()
	c.sticky = 0
	return v
}

func (c *Core) PeekDHCSR(_ uint32) uint32 { return c.status() }

func (c *Core) WriteDHCSR(old, val uint32) {
	if val&0xFFFF0000 != cortexm.DBGKEY {
		modSim.WarnZ("DHCSR write without DBGKEY ignored").Hex32("val", val).End()
		c.DHCSR.Value = old
		return
	}
	ctrl := val & 0xFFFF
	c.DHCSR.Value = ctrl

	switch {
	case ctrl&cortexm.C_DEBUGEN == 0:
		c.haltReq, c.stepping = false, false
		c.halted = false
	case ctrl&cortexm.C_HALT != 0:
		if !c.halted && !c.haltReq {
			c.haltReq, c.haltIn = true, c.cfg.HaltLatency
		}
	case c.halted:
		c.halted = false
		if ctrl&cortexm.C_STEP != 0 {
			c.stepping, c.haltIn = true, c.cfg.HaltLatency
		}
	}
}

// Core register transfers

func (c *Core) WriteDCRSR(_, val uint32) {
	n := val & 0x7F
	if !c.halted || n >= numCoreRegs {
		modSim.WarnZ("DCRSR write ignored").Hex32("val", val).Bool("halted", c.halted).End()
		return
	}
	if val&cortexm.DCRSR_WNR != 0 {
		c.regs[n] = c.DCRDR.Value
	} else {
		c.DCRDR.Value = c.regs[n]
	}
	c.regRdy = c.cfg.RegLatency == 0
	c.regIn = c.cfg.RegLatency
}

// System control

func (c *Core) ReadICSR(_ uint32) uint32 {
	v := hwio.Field32(c.regs[cortexm.RegXPSR], 0, 9)
	if c.pending != 0 {
		v = hwio.SetField32(v, 12, 9, c.pending) | cortexm.ICSR_ISRPENDING
	}
	return v
}

func (c *Core) WriteAIRCR(old, val uint32) {
	c.AIRCR.Value = old
	if val>>16 != 0x05FA {
		modSim.WarnZ("AIRCR write without VECTKEY ignored").Hex32("val", val).End()
		return
	}
	if val&(cortexm.AIRCR_SYSRESETREQ|cortexm.AIRCR_VECTRESET) != 0 {
		c.Reset()
	}
}

// Fault status registers are write one to clear.

func (c *Core) WriteCFSR(old, val uint32) { c.CFSR.Value = old &^ val }
func (c *Core) WriteHFSR(old, val uint32) { c.HFSR.Value = old &^ val }
func (c *Core) WriteDFSR(old, val uint32) { c.DFSR.Value = old &^ val }
func (c *Core) WriteSFSR(old, val uint32) { c.SFSR.Value = old &^ val }

// CDS only changes when CDSKEY is written as zero.
func (c *Core) WriteDSCSR(old, val uint32) {
	v := val
	hwio.ClearBits32(&v, cortexm.DSCSR_CDSKEY|cortexm.DSCSR_CDS)
	cds := val
	if hwio.GetBit32(val, dscsrCDSKeyBit) {
		cds = old
	}
	if hwio.GetBit32(cds, dscsrCDSBit) {
		hwio.SetBit32(&v, dscsrCDSBit)
	}
	c.DSCSR.Value = v
}

// DWT

func (c *Core) pcsr() uint32 {
	if c.halted || c.lockup || c.DWTCTRL.Value&cortexm.DWT_CTRL_CYCCNTENA == 0 {
		return 0xFFFFFFFF
	}
	return c.regs[cortexm.RegPC]
}

func (c *Core) ReadPCSR(_ uint32) uint32 {
	c.tick()
	return c.pcsr()
}

func (c *Core) PeekPCSR(_ uint32) uint32 { return c.pcsr() }

func dwtIndex(addr uint32) (int, uint32) {
	off := addr - cortexm.DWT_COMP0
	return int(off / 16), off % 16
}

func (c *Core) ReadDWTCOMP(addr uint32) uint32 {
	i, reg := dwtIndex(addr)
	if i >= len(c.dwt) {
		return 0
	}
	d := &c.dwt[i]
	switch reg {
	case 0:
		return d.comp
	case 4:
		return d.mask
	case 8:
		v := d.function
		if d.matched {
			v |= cortexm.DWT_FUNCTION_MATCHED
			d.matched = false
		}
		return v
	}
	return 0
}

func (c *Core) WriteDWTCOMP(addr, val uint32) {
	i, reg := dwtIndex(addr)
	if i >= len(c.dwt) {
		return
	}
	d := &c.dwt[i]
	switch reg {
	case 0:
		d.comp = val
	case 4:
		d.mask = hwio.Field32(val, 0, 5)
	case 8:
		d.function = val &^ cortexm.DWT_FUNCTION_MATCHED
		d.matched = false
	}
}

// FPB

func (c *Core) WriteFPCTRL(old, val uint32) {
	v := old
	if hwio.GetBit32(val, fpCtrlKeyBit) {
		hwio.ClearBit32(&v, fpCtrlEnableBit)
		v |= hwio.GetBiti32(val, fpCtrlEnableBit) << fpCtrlEnableBit
	}
	c.FPCTRL.Value = v
}

func (c *Core) ReadFPCOMP(addr uint32) uint32 {
	i := int(addr-cortexm.FP_COMP0) / 4
	if i >= len(c.fp) {
		return 0
	}
	return c.fp[i]
}

func (c *Core) WriteFPCOMP(addr, val uint32) {
	i := int(addr-cortexm.FP_COMP0) / 4
	if i >= len(c.fp) {
		return
	}
	c.fp[i] = val
}
