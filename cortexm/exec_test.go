package cortexm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newRunningCore returns an examined M4 seen running, which halts after
// the given number of polls.
func newRunningCore(t *testing.T, polls int, cfg Config) (*Core, *fakeBus) {
	t.Helper()

	bus := newM4Bus()
	bus.push(DCB_DHCSR, C_DEBUGEN)
	c := newTestCore(t, bus, cfg)
	if got := c.State(); got != StateRunning {
		t.Fatalf("State() = %v, want Running", got)
	}
	for _i := 0; _i < polls; _i++ {
		bus.push(DCB_DHCSR, C_DEBUGEN|C_HALT)
	}
	return c, bus
}

func dhcsrWrites(ws []access) []uint32 {
	var vals []uint32
	for _, w := range ws {
		if w.Addr == DCB_DHCSR {
			vals = append(vals, w.Val&^DBGKEY)
		}
	}
	return vals
}

func TestHaltFromRunning(t *testing.T) {
	c, bus := newRunningCore(t, 2, DefaultConfig())
	bus.push(NVIC_DFSR, DFSR_HALTED)
	bus.push(DCB_DCRDR, 0x08000130, 0x01000000)

	rep, err := c.Halt()
	if err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != StateHalted {
		t.Fatalf("State() = %v, want Halted", got)
	}

	want := &HaltReport{
		Causes:      CauseHaltRequest,
		PC:          0x08000130,
		CorrectedPC: 0x08000130,
		XPSR:        0x01000000,
		DHCSR:       haltedDHCSR,
		DFSR:        DFSR_HALTED,
	}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Fatalf("Halt() mismatch (-want +got):\n%s", diff)
	}
	if c.HaltReason() != rep {
		t.Errorf("HaltReason() is not the last report")
	}

	wantW := []access{
		{Write: true, Addr: DCB_DHCSR, Val: DBGKEY | C_DEBUGEN | C_HALT},
		{Write: true, Addr: NVIC_DFSR, Val: DFSR_HALTED},
		{Write: true, Addr: DCB_DCRSR, Val: RegPC},
		{Write: true, Addr: DCB_DCRSR, Val: RegXPSR},
	}
	if diff := cmp.Diff(wantW, bus.writes()); diff != "" {
		t.Fatalf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestHaltTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollRetries = 5
	bus := newM4Bus()
	bus.regs[DCB_DHCSR] = C_DEBUGEN
	c := newTestCore(t, bus, cfg)

	_, err := c.Halt()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Halt() error = %v, want ErrTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Tries != 5 || te.Mask != S_HALT || te.Reg != DCB_DHCSR {
		t.Errorf("Halt() error = %#v", err)
	}
	if got := c.State(); got != StateUnknown {
		t.Errorf("State() = %v, want Unknown", got)
	}

	reads := 0
	for _, a := range bus.log {
		if !a.Write && a.Addr == DCB_DHCSR {
			reads++
		}
	}
	if reads != 5 {
		t.Errorf("DHCSR read %d times, want 5", reads)
	}
}

func TestHaltTransportError(t *testing.T) {
	bus := newM4Bus()
	c := newTestCore(t, bus, DefaultConfig())

	bus.fail[DCB_DHCSR] = true
	if _, err := c.Halt(); !errors.Is(err, ErrTransport) {
		t.Fatalf("Halt() error = %v, want ErrTransport", err)
	}
	if got := c.State(); got != StateUnknown {
		t.Errorf("State() = %v, want Unknown", got)
	}
}

func TestStepMasking(t *testing.T) {
	tests := []struct {
		policy ISRMasking
		prev   bool // mask in place before the step
		step   uint32
		after  uint32
	}{
		{ISRMaskAuto, false, C_DEBUGEN | C_STEP | C_MASKINTS, C_DEBUGEN | C_HALT},
		{ISRMaskOff, false, C_DEBUGEN | C_STEP, C_DEBUGEN | C_HALT},
		{ISRMaskOn, true, C_DEBUGEN | C_STEP | C_MASKINTS, C_DEBUGEN | C_HALT | C_MASKINTS},
		{ISRMaskStepOnly, false, C_DEBUGEN | C_STEP | C_MASKINTS, C_DEBUGEN | C_HALT},
		{ISRMaskStepOnly, true, C_DEBUGEN | C_STEP | C_MASKINTS, C_DEBUGEN | C_HALT | C_MASKINTS},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ISRMasking = tt.policy
			bus := newM4Bus()
			if tt.prev {
				bus.regs[DCB_DHCSR] |= C_MASKINTS
			}
			c := newTestCore(t, bus, cfg)
			bus.push(DCB_DCRDR, 0x08000132)

			res, err := c.Step()
			if err != nil {
				t.Fatal(err)
			}
			if res.PC != 0x08000132 || res.MaskingUnreliable {
				t.Errorf("Step() = %+v", res)
			}
			want := []uint32{tt.step, tt.after}
			if diff := cmp.Diff(want, dhcsrWrites(bus.writes())); diff != "" {
				t.Errorf("DHCSR writes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStepMaskIntsErratum(t *testing.T) {
	bus := newM4Bus()
	bus.regs[CPUID] = cpuidM7r0
	c := newTestCore(t, bus, DefaultConfig())
	if !c.Identity().MaskIntsErratum {
		t.Fatal("Cortex-M7 r0p0 without masking erratum")
	}

	bus.push(NVIC_ICSR, ICSR_ISRPENDING)
	res, err := c.Step()
	if err != nil {
		t.Fatal(err)
	}
	if !res.MaskingUnreliable {
		t.Errorf("MaskingUnreliable not set with a pending interrupt")
	}

	res, err = c.Step()
	if err != nil {
		t.Fatal(err)
	}
	if res.MaskingUnreliable {
		t.Errorf("MaskingUnreliable set without a pending interrupt")
	}
}

func TestResumeStep(t *testing.T) {
	c, bus := newRunningCore(t, 0, DefaultConfig())

	if err := c.Resume(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Resume() while running error = %v, want ErrInvalidRequest", err)
	}
	if _, err := c.Step(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Step() while running error = %v, want ErrInvalidRequest", err)
	}
	if _, err := c.ReadCoreReg(RegPC); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ReadCoreReg() while running error = %v, want ErrInvalidRequest", err)
	}
	if ws := bus.writes(); len(ws) != 0 {
		t.Fatalf("rejected requests wrote %v", ws)
	}

	if _, err := c.Halt(); err != nil {
		t.Fatal(err)
	}
	bus.writes()
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{C_DEBUGEN}, dhcsrWrites(bus.writes())); diff != "" {
		t.Errorf("DHCSR writes mismatch (-want +got):\n%s", diff)
	}
	st := c.Status()
	if st.StickyRecent || st.Halted() {
		t.Errorf("status after resume = %+v", st)
	}
}

func TestLockup(t *testing.T) {
	bus := newM4Bus()
	bus.regs[DCB_DHCSR] = haltedDHCSR | S_LOCKUP
	c := newTestCore(t, bus, DefaultConfig())

	rep, err := c.Halt()
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Fatal || !rep.Causes.Has(CauseLockup) {
		t.Errorf("Halt() = %+v, want fatal lockup", rep)
	}
	if err := c.Resume(); !errors.Is(err, ErrLockup) {
		t.Errorf("Resume() error = %v, want ErrLockup", err)
	}
	if _, err := c.Step(); !errors.Is(err, ErrLockup) {
		t.Errorf("Step() error = %v, want ErrLockup", err)
	}
}

func TestCoreRegSlowPath(t *testing.T) {
	bus := newM4Bus()
	c := newTestCore(t, bus, DefaultConfig())

	bus.push(DCB_DHCSR, S_HALT|C_HALT|C_DEBUGEN, S_HALT|C_HALT|C_DEBUGEN)
	bus.push(DCB_DCRDR, 0x20001000)
	v, err := c.ReadCoreReg(RegSP)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x20001000 {
		t.Errorf("ReadCoreReg(SP) = %08x, want 20001000", v)
	}
	if !c.slowRegRead {
		t.Errorf("slow path not recorded")
	}

	if err := c.WriteCoreReg(RegPC, 0x08000000); err != nil {
		t.Fatal(err)
	}
	want := []access{
		{Write: true, Addr: DCB_DCRSR, Val: RegSP},
		{Write: true, Addr: DCB_DCRDR, Val: 0x08000000},
		{Write: true, Addr: DCB_DCRSR, Val: RegPC | DCRSR_WNR},
	}
	if diff := cmp.Diff(want, bus.writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestResetHalt(t *testing.T) {
	tests := []struct {
		cpuid uint32
		reset SoftReset
		aircr uint32
	}{
		{cpuidM4, SysResetReq, AIRCR_SYSRESETREQ},
		{cpuidM4, VectReset, AIRCR_VECTRESET},
		{cpuidM33, VectReset, AIRCR_SYSRESETREQ},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.SoftReset = tt.reset
		cfg.VectorCatch = nil
		bus := newM4Bus()
		bus.regs[CPUID] = tt.cpuid
		c := newTestCore(t, bus, cfg)

		if _, err := c.SetBreakpoint(0x100, 2); err != nil {
			t.Fatal(err)
		}
		bus.writes()

		bus.push(DCB_DHCSR, haltedDHCSR|S_RESET_ST, haltedDHCSR, haltedDHCSR|S_RESET_ST)
		if _, err := c.ResetHalt(); err != nil {
			t.Fatal(err)
		}
		if got := c.State(); got != StateHaltedAfterReset {
			t.Errorf("State() = %v, want HaltedAfterReset", got)
		}

		want := []access{
			{Write: true, Addr: DCB_DEMCR, Val: TRCENA | VC_CORERESET},
			{Write: true, Addr: NVIC_AIRCR, Val: AIRCR_VECTKEY | tt.aircr},
			{Write: true, Addr: DCB_DEMCR, Val: TRCENA},
			{Write: true, Addr: FP_COMP0, Val: FPCR_REPLACE_BKPT_LOW | 0x100 | 1},
			{Write: true, Addr: FP_CTRL, Val: FP_CTRL_KEY | FP_CTRL_ENABLE},
		}
		if diff := cmp.Diff(want, bus.writes()); diff != "" {
			t.Errorf("%08x %v: writes mismatch (-want +got):\n%s", tt.cpuid, tt.reset, diff)
		}
	}
}

func TestSetVectorCatch(t *testing.T) {
	bus := newM4Bus()
	bus.regs[DCB_DEMCR] = VC_MMERR | 1<<16 // MON_EN
	c := newTestCore(t, bus, DefaultConfig())

	vc, err := ParseVectorCatch([]string{"bus_err", "int_err"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetVectorCatch(vc); err != nil {
		t.Fatal(err)
	}
	want := []access{{Write: true, Addr: DCB_DEMCR, Val: 1<<16 | TRCENA | VC_BUSERR | VC_INTERR}}
	if diff := cmp.Diff(want, bus.writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}
