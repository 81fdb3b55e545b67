package sim

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"armdbg/cortexm"
)

// DataAccess is a load or store performed by the instruction at PC. The
// simulated core executes no real code, these drive the DWT comparators.
type DataAccess struct {
	PC    uint32 `toml:"pc"`
	Addr  uint32 `toml:"addr"`
	Write bool   `toml:"write"`
}

// Config describes a simulated core.
type Config struct {
	Name   string `toml:"name"`
	Preset string `toml:"preset"`

	CPUID       uint32 `toml:"cpuid"`
	DAuthStatus uint32 `toml:"dauthstatus"`

	FPBRev  int `toml:"fpb_rev"`
	FPBCode int `toml:"fpb_code"`
	FPBLit  int `toml:"fpb_lit"`

	DWTComp    int    `toml:"dwt_comp"`
	DWTDevArch uint32 `toml:"dwt_devarch"`
	NoCycCnt   bool   `toml:"no_cyccnt"`

	// Status reads needed for a halt or step request to complete, and for
	// a core register transfer.
	HaltLatency int `toml:"halt_latency"`
	RegLatency  int `toml:"reg_latency"`

	ResetPC     uint32 `toml:"reset_pc"`
	ResetSP     uint32 `toml:"reset_sp"`
	HandlerBase uint32 `toml:"handler_base"` // exception n enters at HandlerBase + 0x10*n

	RAMBase uint32 `toml:"ram_base"`
	RAMSize uint32 `toml:"ram_size"`

	// Interrupts pending when a step starts ignore C_MASKINTS.
	MaskIntsErratum bool `toml:"maskints_erratum"`

	// A system reset also clears the FPB and DWT (SoCs where the reset
	// line reaches the debug logic).
	ResetClearsDebug bool `toml:"reset_clears_debug"`

	Accesses []DataAccess `toml:"access"`
}

var presets = map[string]Config{
	"cortex-m0+": {
		CPUID:   0x410CC601,
		FPBCode: 4,
		DWTComp: 2,
	},
	"cortex-m3": {
		CPUID:   0x412FC231,
		FPBCode: 6,
		FPBLit:  2,
		DWTComp: 4,
	},
	"cortex-m4": {
		CPUID:   0x410FC241,
		FPBCode: 6,
		FPBLit:  2,
		DWTComp: 4,
	},
	"cortex-m7": {
		CPUID:           0x410FC270,
		FPBRev:          1,
		FPBCode:         8,
		DWTComp:         4,
		MaskIntsErratum: true,
	},
	"cortex-m33": {
		CPUID:       0x410FD210,
		DAuthStatus: 0xFF,
		FPBRev:      1,
		FPBCode:     8,
		DWTComp:     4,
		DWTDevArch:  0x47701A02,
	},
	"cortex-m55": {
		CPUID:       0x410FD220,
		DAuthStatus: 0xFF,
		FPBRev:      1,
		FPBCode:     8,
		DWTComp:     8,
		DWTDevArch:  0x47711A02,
	},
}

// Presets returns the preset names, sorted.
func Presets() []string {
	var names []string
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewConfig returns the configuration of a preset core, with a memory map
// shared by all presets.
func NewConfig(preset string) (Config, error) {
	if preset == "" {
		preset = "cortex-m4"
	}
	cfg, ok := presets[strings.ToLower(preset)]
	if !ok {
		return Config{}, errors.Errorf("unknown core preset %q (%s)", preset, strings.Join(Presets(), ", "))
	}
	cfg.Name = preset
	cfg.Preset = preset
	cfg.ResetPC = 0x00000200
	cfg.ResetSP = 0x20001000
	cfg.HandlerBase = 0x00000100
	cfg.RAMBase = 0x20000000
	cfg.RAMSize = 0x2000
	return cfg, nil
}

func (cfg Config) Validate() error {
	switch {
	case cfg.FPBCode < 0 || cfg.FPBCode > 127:
		return errors.Errorf("%s: fpb_code %d out of range", cfg.Name, cfg.FPBCode)
	case cfg.FPBLit < 0 || cfg.FPBLit > 15:
		return errors.Errorf("%s: fpb_lit %d out of range", cfg.Name, cfg.FPBLit)
	case cfg.FPBRev < 0 || cfg.FPBRev > 15:
		return errors.Errorf("%s: fpb_rev %d out of range", cfg.Name, cfg.FPBRev)
	case cfg.DWTComp < 0 || cfg.DWTComp > 15:
		return errors.Errorf("%s: dwt_comp %d out of range", cfg.Name, cfg.DWTComp)
	case cfg.HaltLatency < 0 || cfg.RegLatency < 0:
		return errors.Errorf("%s: negative latency", cfg.Name)
	case cfg.RAMSize%4 != 0 || cfg.RAMBase%4 != 0:
		return errors.Errorf("%s: ram not word aligned", cfg.Name)
	case cfg.RAMSize != 0 && cfg.RAMBase >= cortexm.DWT_CTRL:
		return errors.Errorf("%s: ram overlaps the private peripheral bus", cfg.Name)
	}
	return nil
}
