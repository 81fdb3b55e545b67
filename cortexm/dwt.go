package cortexm

import (
	stderrors "errors"
	"math/bits"
	"time"

	"github.com/go-faster/errors"

	"armdbg/log"
)

// Access is the kind of data access a watchpoint triggers on.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "r"
	case AccessWrite:
		return "w"
	case AccessReadWrite:
		return "rw"
	}
	return "invalid"
}

func (a *Access) UnmarshalText(text []byte) error {
	switch string(text) {
	case "r", "read":
		*a = AccessRead
	case "w", "write":
		*a = AccessWrite
	case "rw", "access":
		*a = AccessReadWrite
	default:
		return errors.Errorf("invalid access %q (r, w or rw)", text)
	}
	return nil
}

// DWTVariant is the DWT comparator programming model.
type DWTVariant int

const (
	DWTv7 DWTVariant = iota
	DWTv8_0
	DWTv8_1
)

func (v DWTVariant) String() string {
	switch v {
	case DWTv8_0:
		return "v8.0"
	case DWTv8_1:
		return "v8.1"
	}
	return "v7"
}

// MaxLength is the largest watched range, in bytes.
func (v DWTVariant) MaxLength() uint32 {
	if v == DWTv7 {
		return 1 << 15
	}
	return 4
}

// DataComparator is the state of one DWT comparator.
type DataComparator struct {
	Used     bool
	Reserved bool
	Comp     uint32
	Mask     uint32
	Function uint32

	gen uint32
}

type dwt struct {
	ctrl      uint32
	variant   DWTVariant
	slots     []DataComparator
	available int

	pcSampleSlot int // -1 if none is reserved
	pcSampling   bool
}

func (d *dwt) handle(i int) Handle {
	return Handle{idx: i, gen: d.slots[i].gen}
}

func (d *dwt) lookup(h Handle) (*DataComparator, bool) {
	if h.gen == 0 || h.idx < 0 || h.idx >= len(d.slots) {
		return nil, false
	}
	dc := &d.slots[h.idx]
	if !dc.Used || dc.gen != h.gen {
		return nil, false
	}
	return dc, true
}

func dwtReg(base uint32, i int) uint32 { return base + dwtCompStride*uint32(i) }

// dwtVariant classifies DWT_DEVARCH.
func dwtVariant(devarch uint32) DWTVariant {
	switch devarch & dwtDevarchMask {
	case DWT_DEVARCH_ARMV8M_V2_0:
		return DWTv8_0
	case DWT_DEVARCH_ARMV8M_V2_1:
		return DWTv8_1
	}
	return DWTv7
}

func (c *Core) probeDWT() error {
	ctrl, err := c.read(DWT_CTRL)
	if err != nil {
		return err
	}
	devarch, err := c.read(DWT_DEVARCH)
	if err != nil {
		return err
	}
	variant := dwtVariant(devarch)

	n := int(ctrl >> 28)
	c.dwt = dwt{
		ctrl:         ctrl,
		variant:      variant,
		slots:        make([]DataComparator, n),
		pcSampleSlot: -1,
	}

	reserved := min(c.cfg.DWTReserved, n)
	for i := n - reserved; i < n; i++ {
		c.dwt.slots[i].Reserved = true
	}
	if c.cfg.ReservePCSample && n-reserved > 0 {
		c.dwt.pcSampleSlot = n - reserved - 1
		c.dwt.slots[c.dwt.pcSampleSlot].Reserved = true
	}

	for i := range c.dwt.slots {
		c.dwt.slots[i].gen = 1
		if !c.dwt.slots[i].Reserved {
			c.dwt.available++
		}
		if err := c.write(dwtReg(DWT_FUNCTION0, i), 0); err != nil {
			return err
		}
	}

	log.ModDWT.DebugZ("dwt probed").
		Hex32("ctrl", ctrl).
		Stringer("variant", variant).
		Int("comparators", n).
		Int("available", c.dwt.available).
		End()
	return nil
}

// DWTCapacity returns the number of comparators, how many of them can hold
// watchpoints, and the programming model.
func (c *Core) DWTCapacity() (numComp, available int, variant DWTVariant) {
	return len(c.dwt.slots), c.dwt.available, c.dwt.variant
}

// Watchpoints returns a copy of the DWT comparator table.
func (c *Core) Watchpoints() []DataComparator {
	return append([]DataComparator(nil), c.dwt.slots...)
}

// AllocWatchpoint reserves a free, non reserved, DWT comparator.
func (c *Core) AllocWatchpoint() (Handle, error) {
	if err := c.checkExamined(); err != nil {
		return Handle{}, err
	}
	for i := range c.dwt.slots {
		dc := &c.dwt.slots[i]
		if !dc.Used && !dc.Reserved {
			dc.Used = true
			return c.dwt.handle(i), nil
		}
	}
	return Handle{}, errors.Wrap(ErrResourceExhausted, "dwt comparators")
}

// EncodeWatchpoint returns the MASK and FUNCTION values watching length
// bytes at addr. Length must be a power of two no larger than the variant
// maximum and addr aligned on it.
func EncodeWatchpoint(variant DWTVariant, addr, length uint32, access Access) (mask, function uint32, err error) {
	if length == 0 || length&(length-1) != 0 || length > variant.MaxLength() {
		return 0, 0, invalidRequest("watch", addr, "unsupported length %d on DWT %s", length, variant)
	}
	if addr&(length-1) != 0 {
		return 0, 0, invalidRequest("watch", addr, "address not aligned on length %d", length)
	}
	mask = uint32(bits.TrailingZeros32(length))

	if variant == DWTv7 {
		switch access {
		case AccessRead:
			return mask, 5, nil
		case AccessWrite:
			return mask, 6, nil
		case AccessReadWrite:
			return mask, 7, nil
		}
	} else {
		// MATCH in bits 3:0, ACTION=debug event in bits 5:4, DATAVSIZE in
		// bits 11:10.
		var match uint32
		switch access {
		case AccessReadWrite:
			match = 4
		case AccessWrite:
			match = 5
		case AccessRead:
			match = 6
		default:
			return 0, 0, invalidRequest("watch", addr, "invalid access %d", access)
		}
		return mask, match | 1<<4 | mask<<10, nil
	}
	return 0, 0, invalidRequest("watch", addr, "invalid access %d", access)
}

// ProgramWatchpoint arms the comparator. Nothing is written if the request
// is invalid.
func (c *Core) ProgramWatchpoint(h Handle, addr, length uint32, access Access) error {
	dc, ok := c.dwt.lookup(h)
	if !ok {
		return invalidRequest("watch", addr, "stale watchpoint handle")
	}
	mask, fn, err := EncodeWatchpoint(c.dwt.variant, addr, length, access)
	if err != nil {
		return err
	}

	if err := c.write(dwtReg(DWT_COMP0, h.idx), addr); err != nil {
		return err
	}
	if c.dwt.variant == DWTv7 {
		if err := c.write(dwtReg(DWT_MASK0, h.idx), mask); err != nil {
			return err
		}
	}
	if err := c.write(dwtReg(DWT_FUNCTION0, h.idx), fn); err != nil {
		return err
	}
	dc.Comp, dc.Mask, dc.Function = addr, mask, fn

	log.ModDWT.DebugZ("watchpoint programmed").
		Int("idx", h.idx).
		Hex32("addr", addr).
		Uint("len", uint64(length)).
		Stringer("access", access).
		Hex32("function", fn).
		End()
	return nil
}

// SetWatchpoint allocates and programs a comparator in one call.
func (c *Core) SetWatchpoint(addr, length uint32, access Access) (Handle, error) {
	if _, _, err := EncodeWatchpoint(c.dwt.variant, addr, length, access); err != nil {
		return Handle{}, err
	}
	h, err := c.AllocWatchpoint()
	if err != nil {
		return Handle{}, err
	}
	if err := c.ProgramWatchpoint(h, addr, length, access); err != nil {
		return Handle{}, stderrors.Join(err, c.ReleaseWatchpoint(h))
	}
	return h, nil
}

// ReleaseWatchpoint disables the comparator and frees it, even if the
// register write fails.
func (c *Core) ReleaseWatchpoint(h Handle) error {
	dc, ok := c.dwt.lookup(h)
	if !ok {
		return invalidRequest("release", 0, "stale watchpoint handle")
	}
	err := c.write(dwtReg(DWT_FUNCTION0, h.idx), 0)
	*dc = DataComparator{gen: dc.gen + 1}
	return err
}

// RestoreWatchpoints writes the comparator table back to the hardware.
func (c *Core) RestoreWatchpoints() error {
	for i, dc := range c.dwt.slots {
		if !dc.Used {
			continue
		}
		if err := c.write(dwtReg(DWT_COMP0, i), dc.Comp); err != nil {
			return err
		}
		if c.dwt.variant == DWTv7 {
			if err := c.write(dwtReg(DWT_MASK0, i), dc.Mask); err != nil {
				return err
			}
		}
		if err := c.write(dwtReg(DWT_FUNCTION0, i), dc.Function); err != nil {
			return err
		}
	}
	return nil
}

// MatchedWatchpoints returns the watchpoints whose MATCHED bit is set.
// Reading FUNCTION clears the bit.
func (c *Core) MatchedWatchpoints() ([]Handle, error) {
	var hs []Handle
	for i, dc := range c.dwt.slots {
		if !dc.Used {
			continue
		}
		fn, err := c.read(dwtReg(DWT_FUNCTION0, i))
		if err != nil {
			return hs, err
		}
		if fn&DWT_FUNCTION_MATCHED != 0 {
			hs = append(hs, c.dwt.handle(i))
		}
	}
	return hs, nil
}

// PCSamplingSupported reports whether DWT_PCSR can be used.
func (c *Core) PCSamplingSupported() bool {
	return c.examined && c.id.Arch != ArchV6M && len(c.dwt.slots) > 0 && c.dwt.ctrl&DWT_CTRL_NOCYCCNT == 0
}

// EnablePCSampling starts or stops the cycle counter PC sampling relies on.
func (c *Core) EnablePCSampling(on bool) error {
	if on && !c.PCSamplingSupported() {
		return invalidRequest("pc sampling", DWT_PCSR, "not supported by %s", c.id.Name)
	}
	if c.dwt.pcSampling == on {
		return nil
	}
	if c.demcr&TRCENA == 0 {
		c.demcr |= TRCENA
		if err := c.write(DCB_DEMCR, c.demcr); err != nil {
			return err
		}
	}
	ctrl := c.dwt.ctrl &^ DWT_CTRL_CYCCNTENA
	if on {
		ctrl |= DWT_CTRL_CYCCNTENA
	}
	if err := c.write(DWT_CTRL, ctrl); err != nil {
		return err
	}
	c.dwt.ctrl = ctrl
	c.dwt.pcSampling = on
	return nil
}

// ReadPCSample returns a sample of the program counter of the running
// core. ok is false when the hardware had no sample to give.
func (c *Core) ReadPCSample() (pc uint32, ok bool, err error) {
	if !c.dwt.pcSampling {
		return 0, false, invalidRequest("pc sampling", DWT_PCSR, "pc sampling not enabled")
	}
	v, err := c.read(DWT_PCSR)
	if err != nil || v == pcsrNoSample {
		return 0, false, err
	}
	return v, true, nil
}

func (c *Core) ReadCycleCount() (uint32, error) {
	return c.read(DWT_CYCCNT)
}

// Profile collects up to max program counter samples of the running core
// during at most d. It uses DWT_PCSR when available, and falls back to
// halting and resuming the core otherwise.
func (c *Core) Profile(max int, d time.Duration) ([]uint32, error) {
	switch {
	case max < 1:
		return nil, invalidRequest("profile", 0, "sample count %d", max)
	case d <= 0:
		return nil, invalidRequest("profile", 0, "duration %v", d)
	}
	if err := c.checkExamined(); err != nil {
		return nil, err
	}
	if c.status.Halted() {
		return nil, invalidRequest("profile", 0, "core is %s", c.State())
	}

	samples := make([]uint32, 0, max)
	deadline := time.Now().Add(d)

	if c.PCSamplingSupported() {
		if err := c.EnablePCSampling(true); err != nil {
			return nil, err
		}
		for len(samples) < max && time.Now().Before(deadline) {
			pc, ok, err := c.ReadPCSample()
			if err != nil {
				return samples, err
			}
			if ok {
				samples = append(samples, pc)
			}
		}
		return samples, nil
	}

	log.ModDWT.DebugZ("no PC sampling, profiling by halting").End()
	for len(samples) < max && time.Now().Before(deadline) {
		rep, err := c.Halt()
		if err != nil {
			return samples, err
		}
		samples = append(samples, rep.PC)
		if err := c.Resume(); err != nil {
			return samples, err
		}
	}
	return samples, nil
}
