package cortexm

import (
	stderrors "errors"

	"github.com/go-faster/errors"

	"armdbg/log"
)

// ComparatorKind tells FPB instruction address comparators from literal
// (data fetch remap) comparators.
type ComparatorKind int

const (
	KindCode ComparatorKind = iota
	KindLiteral
)

func (k ComparatorKind) String() string {
	if k == KindLiteral {
		return "literal"
	}
	return "code"
}

// CodeComparator is the state of one FPB comparator. The register value is
// Control|Value.
type CodeComparator struct {
	Used    bool
	Kind    ComparatorKind
	Control uint32 // enable bit, and the replace field on revision 0
	Value   uint32 // address field

	gen uint32
}

type fpb struct {
	numCode int
	numLit  int
	rev     int
	enabled bool
	slots   []CodeComparator
}

func (f *fpb) handle(i int) Handle {
	return Handle{idx: i, gen: f.slots[i].gen}
}

func (f *fpb) lookup(h Handle) (*CodeComparator, bool) {
	if h.gen == 0 || h.idx < 0 || h.idx >= len(f.slots) {
		return nil, false
	}
	cc := &f.slots[h.idx]
	if !cc.Used || cc.gen != h.gen {
		return nil, false
	}
	return cc, true
}

func fpCompAddr(i int) uint32 { return FP_COMP0 + 4*uint32(i) }

func (c *Core) probeFPB() error {
	v, err := c.read(FP_CTRL)
	if err != nil {
		return err
	}

	c.fpb = fpb{
		numCode: int(v>>8&0x70 | v>>4&0xF),
		numLit:  int(v >> 8 & 0xF),
		rev:     int(v >> 28),
		enabled: v&FP_CTRL_ENABLE != 0,
	}
	c.fpb.slots = make([]CodeComparator, c.fpb.numCode+c.fpb.numLit)
	for i := range c.fpb.slots {
		c.fpb.slots[i].gen = 1
		if i >= c.fpb.numCode {
			c.fpb.slots[i].Kind = KindLiteral
		}
		if err := c.write(fpCompAddr(i), 0); err != nil {
			return err
		}
	}

	if c.fpb.rev > 1 {
		log.ModFPB.WarnZ("unknown FPB revision, breakpoints will be rejected").Int("rev", c.fpb.rev).End()
	}
	return nil
}

// FPBCapacity returns the comparator counts and the FPB revision probed by
// Examine.
func (c *Core) FPBCapacity() (numCode, numLit, rev int) {
	return c.fpb.numCode, c.fpb.numLit, c.fpb.rev
}

// Comparators returns a copy of the FPB comparator table.
func (c *Core) Comparators() []CodeComparator {
	return append([]CodeComparator(nil), c.fpb.slots...)
}

// AllocComparator reserves a free comparator of the given kind.
func (c *Core) AllocComparator(kind ComparatorKind) (Handle, error) {
	if err := c.checkExamined(); err != nil {
		return Handle{}, err
	}
	for i := range c.fpb.slots {
		cc := &c.fpb.slots[i]
		if !cc.Used && cc.Kind == kind {
			cc.Used = true
			log.ModFPB.DebugZ("comparator allocated").Int("idx", i).Stringer("kind", kind).End()
			return c.fpb.handle(i), nil
		}
	}
	return Handle{}, errors.Wrapf(ErrResourceExhausted, "%s comparators", kind)
}

// EncodeComparator computes the FPB comparator words matching addr for the
// given revision and comparator kind. word selects a 32-bit wide match (both
// halfwords), otherwise only the halfword at addr is matched.
func EncodeComparator(rev int, kind ComparatorKind, addr uint32, word bool) (control, value uint32, err error) {
	switch {
	case kind == KindCode && addr&1 != 0:
		return 0, 0, invalidRequest("breakpoint", addr, "odd address")
	case kind == KindCode && word && addr&3 != 0:
		return 0, 0, invalidRequest("breakpoint", addr, "word breakpoint on a halfword address")
	case kind == KindLiteral && addr&3 != 0:
		return 0, 0, invalidRequest("literal", addr, "address not word aligned")
	}

	switch rev {
	case 0:
		if addr >= fpRev0Limit {
			return 0, 0, invalidRequest("breakpoint", addr, "FPB revision 0 only matches addresses below %08x", fpRev0Limit)
		}
		var replace uint32
		switch {
		case kind == KindLiteral:
			replace = FPCR_REPLACE_REMAP
		case word:
			replace = FPCR_REPLACE_BKPT_BOTH
		case addr&2 != 0:
			replace = FPCR_REPLACE_BKPT_HIGH
		default:
			replace = FPCR_REPLACE_BKPT_LOW
		}
		return replace | fpcrEnable, addr & fpcrRev0Addr, nil
	case 1:
		if kind == KindLiteral {
			return 0, 0, invalidRequest("literal", addr, "literal remap needs FPB revision 0")
		}
		return fpcrEnable, addr, nil
	}
	return 0, 0, invalidRequest("breakpoint", addr, "unsupported FPB revision %d", rev)
}

// DecodeComparator is the reverse of EncodeComparator: it returns the
// matched address (lowest matched halfword), the replace field (revision 0
// only) and the enable bit.
func DecodeComparator(rev int, v uint32) (addr, replace uint32, enabled bool) {
	enabled = v&fpcrEnable != 0
	if rev != 0 {
		return v &^ fpcrEnable, 0, enabled
	}
	replace = v & fpcrReplaceMask
	addr = v & fpcrRev0Addr
	if replace == FPCR_REPLACE_BKPT_HIGH {
		addr |= 2
	}
	return addr, replace, enabled
}

// ProgramComparator encodes addr into the comparator and enables it. The
// request is validated before any register access.
func (c *Core) ProgramComparator(h Handle, addr uint32, word bool) error {
	cc, ok := c.fpb.lookup(h)
	if !ok {
		return invalidRequest("breakpoint", addr, "stale comparator handle")
	}
	ctrl, val, err := EncodeComparator(c.fpb.rev, cc.Kind, addr, word)
	if err != nil {
		return err
	}
	if err := c.write(fpCompAddr(h.idx), ctrl|val); err != nil {
		return err
	}
	cc.Control, cc.Value = ctrl, val

	log.ModFPB.DebugZ("comparator programmed").
		Int("idx", h.idx).
		Hex32("addr", addr).
		Hex32("fpcr", ctrl|val).
		End()
	return nil
}

// ReleaseComparator disables the comparator and frees it. The comparator is
// freed even if the register write fails, the error is still reported.
func (c *Core) ReleaseComparator(h Handle) error {
	cc, ok := c.fpb.lookup(h)
	if !ok {
		return invalidRequest("release", 0, "stale comparator handle")
	}
	err := c.write(fpCompAddr(h.idx), 0)
	*cc = CodeComparator{Kind: cc.Kind, gen: cc.gen + 1}

	log.ModFPB.DebugZ("comparator released").Int("idx", h.idx).Error("err", err).End()
	return err
}

// SetFPBEnable turns the whole FPB unit on or off. Comparators only match
// while the unit is on.
func (c *Core) SetFPBEnable(on bool) error {
	if c.fpb.enabled == on {
		return nil
	}
	v := uint32(FP_CTRL_KEY)
	if on {
		v |= FP_CTRL_ENABLE
	}
	if err := c.write(FP_CTRL, v); err != nil {
		return err
	}
	c.fpb.enabled = on
	return nil
}

func (c *Core) FPBEnabled() bool { return c.fpb.enabled }

// SetBreakpoint places a hardware breakpoint of length 2 (halfword) or 4
// (word) bytes at addr, enabling the FPB if needed.
func (c *Core) SetBreakpoint(addr uint32, length int) (Handle, error) {
	if length != 2 && length != 4 {
		return Handle{}, invalidRequest("breakpoint", addr, "unsupported length %d", length)
	}
	if _, _, err := EncodeComparator(c.fpb.rev, KindCode, addr, length == 4); err != nil {
		return Handle{}, err
	}
	h, err := c.AllocComparator(KindCode)
	if err != nil {
		return Handle{}, err
	}
	if err := c.SetFPBEnable(true); err != nil {
		return Handle{}, stderrors.Join(err, c.ReleaseComparator(h))
	}
	if err := c.ProgramComparator(h, addr, length == 4); err != nil {
		return Handle{}, stderrors.Join(err, c.ReleaseComparator(h))
	}
	return h, nil
}

// ClearBreakpoint removes a breakpoint set by SetBreakpoint.
func (c *Core) ClearBreakpoint(h Handle) error {
	return c.ReleaseComparator(h)
}

// RestoreBreakpoints writes the comparator table back to the hardware, after
// a reset for example.
func (c *Core) RestoreBreakpoints() error {
	for i, cc := range c.fpb.slots {
		if !cc.Used {
			continue
		}
		if err := c.write(fpCompAddr(i), cc.Control|cc.Value); err != nil {
			return err
		}
	}
	if c.fpb.enabled {
		return c.write(FP_CTRL, FP_CTRL_KEY|FP_CTRL_ENABLE)
	}
	return nil
}

// matchesPC reports whether an enabled code comparator matches pc.
func (f *fpb) matchesPC(pc uint32) bool {
	if !f.enabled {
		return false
	}
	for _, cc := range f.slots {
		if !cc.Used || cc.Kind != KindCode || cc.Control&fpcrEnable == 0 {
			continue
		}
		addr, replace, _ := DecodeComparator(f.rev, cc.Control|cc.Value)
		if addr == pc || f.rev == 0 && replace == FPCR_REPLACE_BKPT_BOTH && addr+2 == pc {
			return true
		}
	}
	return false
}
