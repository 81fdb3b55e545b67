package hwio

import (
	"fmt"

	"armdbg/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Reg32 is a 32-bit memory-mapped register.
//
// Bits set in RoMask are preserved by writes. ReadCb is invoked on reads and
// may have side effects (clear-on-read bits); PeekCb must not. WriteCb sees
// the old and the new value, after RoMask has been applied.
type Reg32 struct {
	Name   string
	Value  uint32
	RoMask uint32

	Flags   RWFlags
	ReadCb  func(val uint32) uint32
	PeekCb  func(val uint32) uint32
	WriteCb func(old uint32, val uint32)
}

func (reg Reg32) String() string {
	s := fmt.Sprintf("%s{%08x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.PeekCb != nil {
		s += ",p!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg32) write(val uint32) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg32) Write32(addr uint32, val uint32) error {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Write32 to readonly reg").
			String("name", reg.Name).
			Hex32("addr", addr).
			End()
		return &BusError{Op: "write", Addr: addr, Err: ErrAccess}
	}
	reg.write(val)
	return nil
}

func (reg *Reg32) Read32(addr uint32, peek bool) (uint32, error) {
	if reg.Flags&WriteOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Read32 from writeonly reg").
			String("name", reg.Name).
			Hex32("addr", addr).
			End()
		return 0, &BusError{Op: "read", Addr: addr, Err: ErrAccess}
	}
	if peek {
		if reg.PeekCb != nil {
			return reg.PeekCb(reg.Value), nil
		}
		return reg.Value, nil
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value), nil
	}
	return reg.Value, nil
}
