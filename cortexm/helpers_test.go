package cortexm

import (
	"fmt"
	"testing"
	"time"

	"armdbg/hw/hwio"
)

type access struct {
	Write bool
	Addr  uint32
	Val   uint32
}

func (a access) String() string {
	op := "R"
	if a.Write {
		op = "W"
	}
	return fmt.Sprintf("%s %s=%08x", op, RegName(a.Addr), a.Val)
}

// fakeBus is a recording register bus. Reads return the next scripted value
// for the address if any, the static value otherwise. Writes are only
// recorded.
type fakeBus struct {
	regs   map[uint32]uint32
	script map[uint32][]uint32
	fail   map[uint32]bool
	log    []access
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		regs:   make(map[uint32]uint32),
		script: make(map[uint32][]uint32),
		fail:   make(map[uint32]bool),
	}
}

func (b *fakeBus) Read32(addr uint32) (uint32, error) {
	if b.fail[addr] {
		return 0, &hwio.BusError{Op: "read", Addr: addr, Err: hwio.ErrAccess}
	}
	v := b.regs[addr]
	if q := b.script[addr]; len(q) > 0 {
		v, b.script[addr] = q[0], q[1:]
	}
	b.log = append(b.log, access{Addr: addr, Val: v})
	return v, nil
}

func (b *fakeBus) Write32(addr, val uint32) error {
	if b.fail[addr] {
		return &hwio.BusError{Op: "write", Addr: addr, Err: hwio.ErrAccess}
	}
	b.log = append(b.log, access{Write: true, Addr: addr, Val: val})
	return nil
}

func (b *fakeBus) push(addr uint32, vals ...uint32) {
	b.script[addr] = append(b.script[addr], vals...)
}

// writes returns the recorded writes and resets the log.
func (b *fakeBus) writes() []access {
	var ws []access
	for _, a := range b.log {
		if a.Write {
			ws = append(ws, a)
		}
	}
	b.log = nil
	return ws
}

const (
	cpuidM4   = 0x410FC241
	cpuidM7r0 = 0x410FC270
	cpuidM33  = 0x410FD210

	haltedDHCSR = S_HALT | S_REGRDY | C_HALT | C_DEBUGEN
)

// newM4Bus returns a bus describing a halted Cortex-M4 with a revision 0
// FPB (6 code, 2 literal comparators) and 4 DWT comparators.
func newM4Bus() *fakeBus {
	b := newFakeBus()
	b.regs[CPUID] = cpuidM4
	b.regs[DCB_DHCSR] = haltedDHCSR
	b.regs[FP_CTRL] = 0x00000260
	b.regs[DWT_CTRL] = 0x40000000
	return b
}

func newTestCore(tb testing.TB, bus hwio.Bus, cfg Config) *Core {
	tb.Helper()

	c, err := New(bus, cfg)
	if err != nil {
		tb.Fatal(err)
	}
	c.sleep = func(time.Duration) {}
	if err := c.Examine(); err != nil {
		tb.Fatalf("Examine: %v", err)
	}
	if fb, ok := bus.(*fakeBus); ok {
		fb.log = nil
	}
	return c
}
