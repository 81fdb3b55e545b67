package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"

	"armdbg/cortexm"
	"armdbg/sim"
)

// Config is the content of the configuration file: the debug core tunables
// shared by all cores, and one entry per simulated core.
//
//	[debug]
//	isr_masking = "steponly"
//
//	[[core]]
//	name = "app"
//	preset = "cortex-m33"
//	halt_latency = 2
type Config struct {
	Debug cortexm.Config
	Cores []sim.Config
}

// loadConfig reads the configuration file at path. Without a file, a single
// core of the given preset is simulated.
func loadConfig(path, preset string) (Config, error) {
	if path == "" {
		cfg, err := sim.NewConfig(preset)
		if err != nil {
			return Config{}, err
		}
		cfg.Name = "core0"
		return Config{Debug: cortexm.DefaultConfig(), Cores: []sim.Config{cfg}}, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := decodeConfig(string(buf), preset)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// decodeConfig decodes a configuration file. Each core starts from its
// preset (defpreset when it names none), then the keys of its table are
// applied on top.
func decodeConfig(data, defpreset string) (Config, error) {
	var raw struct {
		Debug toml.Primitive   `toml:"debug"`
		Cores []toml.Primitive `toml:"core"`
	}
	md, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg := Config{Debug: cortexm.DefaultConfig()}
	if md.IsDefined("debug") {
		if err := md.PrimitiveDecode(raw.Debug, &cfg.Debug); err != nil {
			return Config{}, errors.Wrap(err, "decode [debug]")
		}
	}

	names := make(map[string]bool)
	for i, prim := range raw.Cores {
		var sel struct {
			Preset string `toml:"preset"`
		}
		if err := md.PrimitiveDecode(prim, &sel); err != nil {
			return Config{}, errors.Wrapf(err, "decode core %d", i)
		}
		if sel.Preset == "" {
			sel.Preset = defpreset
		}
		core, err := sim.NewConfig(sel.Preset)
		if err != nil {
			return Config{}, errors.Wrapf(err, "core %d", i)
		}
		core.Name = fmt.Sprintf("core%d", i)
		if err := md.PrimitiveDecode(prim, &core); err != nil {
			return Config{}, errors.Wrapf(err, "decode core %d", i)
		}
		if names[core.Name] {
			return Config{}, fmt.Errorf("duplicate core name %q", core.Name)
		}
		names[core.Name] = true
		cfg.Cores = append(cfg.Cores, core)
	}

	if undec := md.Undecoded(); len(undec) != 0 {
		return Config{}, fmt.Errorf("unknown config keys: %v", undec)
	}
	if len(cfg.Cores) == 0 {
		return Config{}, errors.New("no [[core]] configured")
	}
	if err := cfg.Debug.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid [debug]")
	}
	return cfg, nil
}
