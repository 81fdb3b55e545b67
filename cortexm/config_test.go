package cortexm

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(`
poll_retries = 20
poll_interval = "5ms"
isr_masking = "steponly"
soft_reset = "vectreset"
dwt_reserved = 1
reserve_pc_sample = true
vector_catch = ["hard_err", "bus_err", "mm_err"]
`)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		PollRetries:     20,
		PollInterval:    5 * time.Millisecond,
		ISRMasking:      ISRMaskStepOnly,
		SoftReset:       VectReset,
		DWTReserved:     1,
		ReservePCSample: true,
		VectorCatch:     []string{"hard_err", "bus_err", "mm_err"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("DecodeConfig() mismatch (-want +got):\n%s", diff)
	}

	cfg, err = DecodeConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Fatalf("DecodeConfig(empty) mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	for _, doc := range []string{
		`poll_retries = 0`,
		`poll_retry = 3`,
		`isr_masking = "sometimes"`,
		`soft_reset = "hard"`,
		`vector_catch = ["nmi"]`,
		`dwt_reserved = -1`,
		`poll_interval = "soon"`,
	} {
		if _, err := DecodeConfig(doc); err == nil {
			t.Errorf("DecodeConfig(%q) succeeded", doc)
		}
	}
}

func TestVectorCatchNames(t *testing.T) {
	vc, err := ParseVectorCatch([]string{"reset", "hard_err", "none"})
	if err != nil {
		t.Fatal(err)
	}
	if vc != VC_CORERESET|VC_HARDERR {
		t.Errorf("ParseVectorCatch() = %08x", uint32(vc))
	}
	if diff := cmp.Diff([]string{"hard_err", "reset"}, vc.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	all, err := ParseVectorCatch([]string{"all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Names()) != 8 {
		t.Errorf("all = %v", all.Names())
	}
}

func TestISRMaskingText(t *testing.T) {
	for _, m := range []ISRMasking{ISRMaskAuto, ISRMaskOff, ISRMaskOn, ISRMaskStepOnly} {
		text, err := m.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got ISRMasking
		if err := got.UnmarshalText(text); err != nil || got != m {
			t.Errorf("UnmarshalText(%q) = %v, %v, want %v", text, got, err, m)
		}
	}
}
