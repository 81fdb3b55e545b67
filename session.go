package main

import (
	"context"
	stderrors "errors"
	"fmt"

	"armdbg/cortexm"
	"armdbg/log"
	"armdbg/sim"
	"armdbg/target"
)

// session holds the simulated cores of one invocation, all under debug
// control once opened.
type session struct {
	targets []*target.Target
}

// openSession creates the simulated cores described by cfg and examines
// them in parallel.
func openSession(ctx context.Context, cfg Config) (*session, error) {
	s := &session{}
	for _, scfg := range cfg.Cores {
		simcore, err := sim.New(scfg)
		if err != nil {
			return nil, err
		}
		core, err := cortexm.New(simcore, cfg.Debug)
		if err != nil {
			return nil, err
		}
		s.targets = append(s.targets, target.New(scfg.Name, core))
		log.ModCore.WithFields(log.Fields{"core": scfg.Name, "preset": scfg.Preset}).
			Debugf("simulated core at reset pc %08x", scfg.ResetPC)
	}

	if err := target.ExamineAll(ctx, s.targets); err != nil {
		return nil, err
	}
	return s, nil
}

// core returns the named core, the first one if name is empty.
func (s *session) core(name string) (*target.Target, *cortexm.Core, error) {
	for _, t := range s.targets {
		if name != "" && t.Name != name {
			continue
		}
		core, ok := target.CortexM(t)
		if !ok {
			return nil, nil, fmt.Errorf("%s is not a Cortex-M core", t.Name)
		}
		return t, core, nil
	}
	return nil, nil, fmt.Errorf("no core named %q", name)
}

// close releases the comparators of every core.
func (s *session) close() error {
	var errs []error
	for _, t := range s.targets {
		if err := t.Deinit(); err != nil {
			log.ModCore.WithField("core", t.Name).Warnf("comparators not released: %v", err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
