// Package cortexm implements the debug control of ARM Cortex-M cores over a
// word-level register bus: identification, FPB breakpoints, DWT watchpoints,
// halt/resume/step, halt cause decoding and security context switching.
//
// A Core is owned by one debug session and is not safe for concurrent use:
// all debug register accesses of a core go through its methods, one at a
// time.
package cortexm

import (
	stderrors "errors"
	"time"

	"github.com/go-faster/errors"

	"armdbg/hw/hwio"
	"armdbg/log"
)

type Core struct {
	bus hwio.Bus
	cfg Config

	id       Identity
	examined bool

	status   DebugStatus
	demcr    uint32
	vcatch   VectorCatch
	lastHalt *HaltReport
	lockedUp bool

	// A core register transfer was not ready on the first DHCSR read, the
	// following transfers go straight to the polling path.
	slowRegRead bool

	fpb fpb
	dwt dwt

	sleep func(time.Duration)
}

// New returns a core driven through bus. The core must be examined before
// use.
func New(bus hwio.Bus, cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vc, _ := ParseVectorCatch(cfg.VectorCatch)
	return &Core{
		bus:    bus,
		cfg:    cfg,
		vcatch: vc,
		sleep:  time.Sleep,
	}, nil
}

// Examine identifies the core, enables halting debug, and probes the FPB
// and DWT units. Comparators are all cleared.
func (c *Core) Examine() error {
	id, err := Identify(c.bus)
	if err != nil {
		c.status.Valid = false
		return err
	}
	c.id = id

	if _, err := c.ReadStatus(); err != nil {
		return err
	}
	if !c.status.DHCSR.CDebugEn() {
		if err := c.writeDHCSR(C_DEBUGEN | c.status.ctrl()&(C_HALT|C_MASKINTS)); err != nil {
			return err
		}
	}

	demcr, err := c.read(DCB_DEMCR)
	if err != nil {
		return err
	}
	c.demcr = demcr&^vcMask | TRCENA | uint32(c.vcatch)
	if err := c.write(DCB_DEMCR, c.demcr); err != nil {
		return err
	}

	if err := c.probeFPB(); err != nil {
		return err
	}
	if err := c.probeDWT(); err != nil {
		return err
	}

	c.examined = true
	log.ModCore.InfoZ("core examined").
		String("core", id.Name).
		Int("fp_code", c.fpb.numCode).
		Int("fp_lit", c.fpb.numLit).
		Int("fp_rev", c.fpb.rev).
		Int("dwt_comp", len(c.dwt.slots)).
		Int("dwt_avail", c.dwt.available).
		End()
	return nil
}

// Identity returns what Examine learnt about the core.
func (c *Core) Identity() Identity { return c.id }

func (c *Core) Config() Config { return c.cfg }

// Deinit releases every comparator and disables the FPB, returning the
// first error met while still attempting every step.
func (c *Core) Deinit() error {
	if !c.examined {
		return nil
	}
	var errs []error
	for i := range c.fpb.slots {
		if c.fpb.slots[i].Used {
			errs = append(errs, c.ReleaseComparator(c.fpb.handle(i)))
		}
	}
	for i := range c.dwt.slots {
		if c.dwt.slots[i].Used {
			errs = append(errs, c.ReleaseWatchpoint(c.dwt.handle(i)))
		}
	}
	errs = append(errs, c.SetFPBEnable(false))
	c.examined = false
	return stderrors.Join(errs...)
}

func (c *Core) checkExamined() error {
	if !c.examined {
		return ErrNotExamined
	}
	return nil
}

// read and write are the only paths to the bus. A transport error makes the
// execution state unknown.
func (c *Core) read(addr uint32) (uint32, error) {
	v, err := c.bus.Read32(addr)
	if err != nil {
		c.status.Valid = false
		return 0, errors.Wrapf(err, "read %s", RegName(addr))
	}
	return v, nil
}

func (c *Core) write(addr, val uint32) error {
	if err := c.bus.Write32(addr, val); err != nil {
		c.status.Valid = false
		return errors.Wrapf(err, "write %s", RegName(addr))
	}
	return nil
}

// Handle designates an allocated comparator. The zero Handle is invalid.
// A handle becomes stale when its comparator is released, and is then
// rejected even if the same comparator got allocated again.
type Handle struct {
	idx int
	gen uint32
}

// Index returns the comparator number, -1 for the zero handle.
func (h Handle) Index() int {
	if h.gen == 0 {
		return -1
	}
	return h.idx
}

func (h Handle) Valid() bool { return h.gen != 0 }
