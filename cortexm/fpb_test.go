package cortexm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFPBRev0RoundTrip(t *testing.T) {
	tests := []struct {
		addr    uint32
		word    bool
		replace uint32
	}{
		{0x00000100, false, FPCR_REPLACE_BKPT_LOW},
		{0x00000102, false, FPCR_REPLACE_BKPT_HIGH},
		{0x00000104, true, FPCR_REPLACE_BKPT_BOTH},
		{0x08000100, false, FPCR_REPLACE_BKPT_LOW},
		{0x0800FFFE, false, FPCR_REPLACE_BKPT_HIGH},
		{0x1FFFFFFC, true, FPCR_REPLACE_BKPT_BOTH},
	}

	for _, tt := range tests {
		ctrl, val, err := EncodeComparator(0, KindCode, tt.addr, tt.word)
		if err != nil {
			t.Fatalf("EncodeComparator(%08x): %v", tt.addr, err)
		}
		if ctrl&fpcrReplaceMask != tt.replace {
			t.Errorf("EncodeComparator(%08x) replace = %08x, want %08x", tt.addr, ctrl&fpcrReplaceMask, tt.replace)
		}
		addr, replace, enabled := DecodeComparator(0, ctrl|val)
		if addr != tt.addr || replace != tt.replace || !enabled {
			t.Errorf("DecodeComparator(%08x) = %08x, %08x, %t, want %08x, %08x, true",
				ctrl|val, addr, replace, enabled, tt.addr, tt.replace)
		}
	}
}

func TestFPBEncodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		rev  int
		kind ComparatorKind
		addr uint32
		word bool
	}{
		{"odd", 0, KindCode, 0x101, false},
		{"odd rev1", 1, KindCode, 0x08000101, false},
		{"word on halfword", 0, KindCode, 0x102, true},
		{"above code region", 0, KindCode, 0x20000000, false},
		{"literal unaligned", 0, KindLiteral, 0x102, false},
		{"literal rev1", 1, KindLiteral, 0x100, false},
		{"unknown revision", 2, KindCode, 0x100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := EncodeComparator(tt.rev, tt.kind, tt.addr, tt.word)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("EncodeComparator() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestBreakpointM4Rev1(t *testing.T) {
	bus := newM4Bus()
	bus.regs[FP_CTRL] = 0x10000260
	c := newTestCore(t, bus, DefaultConfig())

	id := c.Identity()
	if id.Name != "Cortex-M4" || !id.HasFPv4() || id.Arch != ArchV7M {
		t.Fatalf("Identity() = %v, want Cortex-M4 with FPv4", id)
	}
	if code, lit, rev := c.FPBCapacity(); code != 6 || lit != 2 || rev != 1 {
		t.Fatalf("FPBCapacity() = %d, %d, %d, want 6, 2, 1", code, lit, rev)
	}

	h, err := c.AllocComparator(KindCode)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ProgramComparator(h, 0x08000100, false); err != nil {
		t.Fatal(err)
	}

	ignoreGen := cmpopts.IgnoreUnexported(CodeComparator{})
	want := CodeComparator{Used: true, Kind: KindCode, Control: 1, Value: 0x08000100}
	if diff := cmp.Diff(want, c.Comparators()[h.Index()], ignoreGen); diff != "" {
		t.Fatalf("comparator mismatch (-want +got):\n%s", diff)
	}
	wantW := []access{{Write: true, Addr: FP_COMP0, Val: 0x08000101}}
	if diff := cmp.Diff(wantW, bus.writes()); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}

	if err := c.ReleaseComparator(h); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(CodeComparator{Kind: KindCode}, c.Comparators()[h.Index()], ignoreGen); diff != "" {
		t.Fatalf("released comparator mismatch (-want +got):\n%s", diff)
	}
	wantW = []access{{Write: true, Addr: FP_COMP0, Val: 0}}
	if diff := cmp.Diff(wantW, bus.writes()); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestComparatorAllocRelease(t *testing.T) {
	c := newTestCore(t, newM4Bus(), DefaultConfig())

	var hs []Handle
	for _i := 0; _i < 6; _i++ {
		h, err := c.AllocComparator(KindCode)
		if err != nil {
			t.Fatal(err)
		}
		hs = append(hs, h)
	}
	if _, err := c.AllocComparator(KindCode); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("7th AllocComparator() error = %v, want ErrResourceExhausted", err)
	}

	// Literal comparators are a separate pool.
	lh, err := c.AllocComparator(KindLiteral)
	if err != nil {
		t.Fatal(err)
	}
	if lh.Index() != 6 {
		t.Errorf("literal comparator index = %d, want 6", lh.Index())
	}

	if err := c.ProgramComparator(hs[2], 0x200, false); err != nil {
		t.Fatal(err)
	}
	if err := c.ReleaseComparator(hs[2]); err != nil {
		t.Fatal(err)
	}
	if err := c.ReleaseComparator(hs[2]); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("double release error = %v, want ErrInvalidRequest", err)
	}

	h, err := c.AllocComparator(KindCode)
	if err != nil {
		t.Fatal(err)
	}
	if h.Index() != 2 {
		t.Fatalf("reallocated index = %d, want 2", h.Index())
	}
	if h == hs[2] {
		t.Errorf("reallocated handle equals the stale one")
	}
	if err := c.ProgramComparator(hs[2], 0x300, false); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("ProgramComparator(stale) error = %v, want ErrInvalidRequest", err)
	}
	want := CodeComparator{Used: true, Kind: KindCode}
	if diff := cmp.Diff(want, c.Comparators()[2], cmpopts.IgnoreUnexported(CodeComparator{})); diff != "" {
		t.Errorf("reallocated comparator not fresh (-want +got):\n%s", diff)
	}

	used := 0
	for _, cc := range c.Comparators() {
		if cc.Used {
			used++
		}
	}
	if used != 7 {
		t.Errorf("used comparators = %d, want 7", used)
	}
}

func TestReleaseComparatorWriteFails(t *testing.T) {
	bus := newM4Bus()
	c := newTestCore(t, bus, DefaultConfig())

	h, err := c.AllocComparator(KindCode)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ProgramComparator(h, 0x400, true); err != nil {
		t.Fatal(err)
	}

	bus.fail[FP_COMP0] = true
	if err := c.ReleaseComparator(h); !errors.Is(err, ErrTransport) {
		t.Fatalf("ReleaseComparator() error = %v, want ErrTransport", err)
	}
	if c.Comparators()[0].Used {
		t.Errorf("comparator still used after failed release")
	}
	if c.State() != StateUnknown {
		t.Errorf("State() = %v, want Unknown", c.State())
	}
}

func TestSetBreakpoint(t *testing.T) {
	bus := newM4Bus()
	c := newTestCore(t, bus, DefaultConfig())

	if _, err := c.SetBreakpoint(0x08000000, 4); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("SetBreakpoint(above rev0 window) error = %v, want ErrInvalidRequest", err)
	}
	if _, err := c.SetBreakpoint(0x100, 3); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("SetBreakpoint(length 3) error = %v, want ErrInvalidRequest", err)
	}
	if ws := bus.writes(); len(ws) != 0 {
		t.Fatalf("invalid requests wrote %v", ws)
	}

	h, err := c.SetBreakpoint(0x1002, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetBreakpoint(0x2000, 4); err != nil {
		t.Fatal(err)
	}
	want := []access{
		{Write: true, Addr: FP_CTRL, Val: FP_CTRL_KEY | FP_CTRL_ENABLE},
		{Write: true, Addr: FP_COMP0, Val: FPCR_REPLACE_BKPT_HIGH | 0x1000 | 1},
		{Write: true, Addr: FP_COMP0 + 4, Val: FPCR_REPLACE_BKPT_BOTH | 0x2000 | 1},
	}
	if diff := cmp.Diff(want, bus.writes()); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}

	if err := c.ClearBreakpoint(h); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFPBEnable(true); err != nil {
		t.Fatal(err)
	}
	want = []access{{Write: true, Addr: FP_COMP0, Val: 0}}
	if diff := cmp.Diff(want, bus.writes()); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}

	if err := c.RestoreBreakpoints(); err != nil {
		t.Fatal(err)
	}
	want = []access{
		{Write: true, Addr: FP_COMP0 + 4, Val: FPCR_REPLACE_BKPT_BOTH | 0x2000 | 1},
		{Write: true, Addr: FP_CTRL, Val: FP_CTRL_KEY | FP_CTRL_ENABLE},
	}
	if diff := cmp.Diff(want, bus.writes()); diff != "" {
		t.Fatalf("restore writes mismatch (-want +got):\n%s", diff)
	}
}
