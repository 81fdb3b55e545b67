package hwio

import (
	"fmt"
	"sort"

	"armdbg/log"
)

// log unmapped accesses (the debug core probes optional registers, so this
// is noisy by default)
const logUnmapped = false

// BankIO32 is implemented by everything that can be mapped into a Table.
type BankIO32 interface {
	// Read32 reads the word at the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read32(addr uint32, peek bool) (uint32, error)
	Write32(addr uint32, val uint32) error
}

type span struct {
	begin, end uint32 // inclusive
	io         BankIO32
}

// Table is a word-addressed register map. It implements Bus.
type Table struct {
	Name string

	regs  map[uint32]BankIO32
	spans []span // sorted by begin, non overlapping
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	t.Reset()
	return t
}

func (t *Table) Reset() {
	t.regs = make(map[uint32]BankIO32)
	t.spans = nil
}

// Map a register bank (that is, a structure containing multiple Reg32,
// Device or Mem fields) at addr. See InitRegs for the struct tag syntax.
func (t *Table) MapBank(addr uint32, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Reg32:
			t.MapReg32(addr+reg.offset, r)
		case *Device:
			t.MapDevice(addr+reg.offset, r)
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) MapReg32(addr uint32, reg *Reg32) {
	if addr&3 != 0 {
		panic(fmt.Errorf("unaligned register %s at %08x", reg.Name, addr))
	}
	if _, ok := t.regs[addr]; ok {
		panic(fmt.Errorf("register %s: address %08x already mapped on %s", reg.Name, addr, t.Name))
	}
	t.regs[addr] = reg
}

func (t *Table) MapDevice(addr uint32, dev *Device) {
	t.mapSpan(addr, uint32(dev.Size), dev)
}

func (t *Table) MapMem(addr uint32, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex32("addr", addr).
		Hex32("size", uint32(len(mem.Data)*4)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	mem.base = addr
	t.mapSpan(addr, uint32(len(mem.Data)*4), mem)
}

func (t *Table) mapSpan(addr, size uint32, io BankIO32) {
	if size == 0 || addr&3 != 0 {
		panic(fmt.Errorf("invalid span %08x+%x on %s", addr, size, t.Name))
	}
	s := span{begin: addr, end: addr + size - 1, io: io}
	i := sort.Search(len(t.spans), func(i int) bool { return t.spans[i].begin > addr })
	if i > 0 && t.spans[i-1].end >= s.begin || i < len(t.spans) && t.spans[i].begin <= s.end {
		panic(fmt.Errorf("span %08x-%08x overlaps on %s", s.begin, s.end, t.Name))
	}
	t.spans = append(t.spans, span{})
	copy(t.spans[i+1:], t.spans[i:])
	t.spans[i] = s
}

// Unmap removes the register or span starting at addr.
func (t *Table) Unmap(addr uint32) {
	delete(t.regs, addr)
	for i := range t.spans {
		if t.spans[i].begin == addr {
			t.spans = append(t.spans[:i], t.spans[i+1:]...)
			return
		}
	}
}

func (t *Table) search(addr uint32) BankIO32 {
	if io, ok := t.regs[addr&^3]; ok {
		return io
	}
	i := sort.Search(len(t.spans), func(i int) bool { return t.spans[i].end >= addr })
	if i < len(t.spans) && t.spans[i].begin <= addr {
		return t.spans[i].io
	}
	return nil
}

// Read32 searches in the table for the register mapped at the given address
// and forward the read to it.
func (t *Table) Read32(addr uint32) (uint32, error) {
	return t.read32(addr, false)
}

// Peek32 reads without side effects.
func (t *Table) Peek32(addr uint32) (uint32, error) {
	return t.read32(addr, true)
}

func (t *Table) read32(addr uint32, peek bool) (uint32, error) {
	io := t.search(addr)
	if io == nil {
		if logUnmapped && !peek {
			log.ModHwIo.ErrorZ("unmapped Read32").
				String("name", t.Name).
				Hex32("addr", addr).
				End()
		}
		return 0, &BusError{Op: "read", Addr: addr, Err: ErrUnmapped}
	}
	return io.Read32(addr, peek)
}

func (t *Table) Write32(addr uint32, val uint32) error {
	io := t.search(addr)
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write32").
				String("name", t.Name).
				Hex32("addr", addr).
				Hex32("val", val).
				End()
		}
		return &BusError{Op: "write", Addr: addr, Err: ErrUnmapped}
	}
	return io.Write32(addr, val)
}
