package hwio

import "armdbg/log"

// Device is a BankIO32 implementation that allows manual management of an
// entire range of addresses.
type Device struct {
	Name  string // name of the area (for debugging)
	Size  int    // size of the area in bytes
	Flags RWFlags

	ReadCb  func(addr uint32) uint32
	PeekCb  func(addr uint32) uint32
	WriteCb func(addr uint32, val uint32)
}

func (d *Device) Read32(addr uint32, peek bool) (uint32, error) {
	if d.Flags&WriteOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Read32 from writeonly device").
			String("name", d.Name).
			Hex32("addr", addr).
			End()
		return 0, &BusError{Op: "read", Addr: addr, Err: ErrAccess}
	}
	if peek {
		if d.PeekCb != nil {
			return d.PeekCb(addr), nil
		}
		return 0, nil
	}
	if d.ReadCb == nil {
		return 0, nil
	}
	return d.ReadCb(addr), nil
}

func (d *Device) Write32(addr uint32, val uint32) error {
	if d.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Write32 to readonly device").
			String("name", d.Name).
			Hex32("addr", addr).
			End()
		return &BusError{Op: "write", Addr: addr, Err: ErrAccess}
	}
	if d.WriteCb != nil {
		d.WriteCb(addr, val)
	}
	return nil
}
