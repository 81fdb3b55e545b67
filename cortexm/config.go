package cortexm

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

//go:generate go tool stringer -type=ISRMasking -trimprefix=ISRMask

// ISRMasking selects when interrupts are masked (DHCSR.C_MASKINTS) while
// the core is under debug control.
type ISRMasking int

const (
	ISRMaskAuto     ISRMasking = iota // mask only while single stepping
	ISRMaskOff                        // never mask
	ISRMaskOn                         // always mask while halted and stepping
	ISRMaskStepOnly                   // mask during the step, then restore
)

func (m ISRMasking) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(m.String())), nil
}

func (m *ISRMasking) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "auto":
		*m = ISRMaskAuto
	case "off":
		*m = ISRMaskOff
	case "on":
		*m = ISRMaskOn
	case "steponly":
		*m = ISRMaskStepOnly
	default:
		return fmt.Errorf("unknown isr masking mode %q", text)
	}
	return nil
}

// SoftReset selects the AIRCR bit used by ResetHalt.
type SoftReset int

const (
	SysResetReq SoftReset = iota
	VectReset             // ARMv7-M only
)

func (r SoftReset) MarshalText() ([]byte, error) {
	if r == VectReset {
		return []byte("vectreset"), nil
	}
	return []byte("sysresetreq"), nil
}

func (r *SoftReset) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "sysresetreq":
		*r = SysResetReq
	case "vectreset":
		*r = VectReset
	default:
		return fmt.Errorf("unknown soft reset mode %q", text)
	}
	return nil
}

// VectorCatch is a set of DEMCR vector catch bits.
type VectorCatch uint32

var vectorCatchNames = []struct {
	name string
	bit  VectorCatch
}{
	{"hard_err", VC_HARDERR},
	{"int_err", VC_INTERR},
	{"bus_err", VC_BUSERR},
	{"state_err", VC_STATERR},
	{"chk_err", VC_CHKERR},
	{"nocp_err", VC_NOCPERR},
	{"mm_err", VC_MMERR},
	{"reset", VC_CORERESET},
}

// ParseVectorCatch converts vector catch names into DEMCR bits. "all" and
// "none" are accepted.
func ParseVectorCatch(names []string) (VectorCatch, error) {
	var vc VectorCatch
	for _, n := range names {
		switch n {
		case "all":
			vc |= vcMask
			continue
		case "none":
			continue
		}
		found := false
		for _, vn := range vectorCatchNames {
			if vn.name == n {
				vc |= vn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown vector catch %q", n)
		}
	}
	return vc, nil
}

func (vc VectorCatch) Names() []string {
	var names []string
	for _, vn := range vectorCatchNames {
		if vc&vn.bit != 0 {
			names = append(names, vn.name)
		}
	}
	return names
}

// Config holds the tunables of a Core.
type Config struct {
	// Number of status reads before a polled bit is declared stuck, and the
	// delay between two reads.
	PollRetries  int           `toml:"poll_retries"`
	PollInterval time.Duration `toml:"poll_interval"`

	ISRMasking ISRMasking `toml:"isr_masking"`
	SoftReset  SoftReset  `toml:"soft_reset"`

	// DWT comparators kept away from watchpoint allocation (the highest
	// numbered ones), and whether one more is reserved for PC sampling.
	DWTReserved     int  `toml:"dwt_reserved"`
	ReservePCSample bool `toml:"reserve_pc_sample"`

	VectorCatch []string `toml:"vector_catch"`
}

func DefaultConfig() Config {
	return Config{
		PollRetries:  100,
		PollInterval: time.Millisecond,
		ISRMasking:   ISRMaskAuto,
		SoftReset:    SysResetReq,
		VectorCatch:  []string{"hard_err", "reset"},
	}
}

func (cfg Config) Validate() error {
	if cfg.PollRetries < 1 {
		return fmt.Errorf("poll_retries must be at least 1, got %d", cfg.PollRetries)
	}
	if cfg.PollInterval < 0 {
		return fmt.Errorf("negative poll_interval %v", cfg.PollInterval)
	}
	if cfg.DWTReserved < 0 {
		return fmt.Errorf("negative dwt_reserved %d", cfg.DWTReserved)
	}
	if _, err := ParseVectorCatch(cfg.VectorCatch); err != nil {
		return err
	}
	return nil
}

// DecodeConfig decodes a TOML document over the default configuration.
// Unknown keys are an error.
func DecodeConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		return Config{}, fmt.Errorf("unknown config keys: %v", undec)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
