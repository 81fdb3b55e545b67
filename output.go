package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/jx"

	"armdbg/cortexm"
)

// printer writes command results, as text or as one JSON object per line.
type printer struct {
	w    io.Writer
	json bool
}

func hex32(v uint32) string { return fmt.Sprintf("0x%08x", v) }

func (p *printer) emit(enc func(e *jx.Encoder)) error {
	var e jx.Encoder
	enc(&e)
	_, err := fmt.Fprintln(p.w, string(e.Bytes()))
	return err
}

func (p *printer) identity(name string, c *cortexm.Core) error {
	id := c.Identity()
	code, lit, rev := c.FPBCapacity()
	ncomp, avail, variant := c.DWTCapacity()

	if !p.json {
		_, err := fmt.Fprintf(p.w, "%s: %v\n\tfpb: rev %d, %d code, %d literal\n\tdwt: %v, %d comparators, %d available\n",
			name, id, rev, code, lit, variant, ncomp, avail)
		return err
	}

	return p.emit(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("core")
		e.Str(name)
		e.FieldStart("name")
		e.Str(id.Name)
		e.FieldStart("cpuid")
		e.Str(hex32(id.CPUID))
		e.FieldStart("arch")
		e.Str(id.Arch.String())
		e.FieldStart("known")
		e.Bool(id.Known)
		e.FieldStart("security_ext")
		e.Bool(id.SecurityExt)
		e.FieldStart("fpv4")
		e.Bool(id.HasFPv4())
		e.FieldStart("fpv5")
		e.Bool(id.HasFPv5())

		e.FieldStart("errata")
		e.ArrStart()
		if id.MaskIntsErratum {
			e.Str("maskints")
		}
		if id.IncorrectHaltErratum {
			e.Str("halt-address")
		}
		e.ArrEnd()

		e.FieldStart("fpb")
		e.ObjStart()
		e.FieldStart("rev")
		e.Int(rev)
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("literal")
		e.Int(lit)
		e.ObjEnd()

		e.FieldStart("dwt")
		e.ObjStart()
		e.FieldStart("variant")
		e.Str(variant.String())
		e.FieldStart("comparators")
		e.Int(ncomp)
		e.FieldStart("available")
		e.Int(avail)
		e.ObjEnd()
		e.ObjEnd()
	})
}

func (p *printer) status(name string, st cortexm.DebugStatus) error {
	if !p.json {
		_, err := fmt.Fprintf(p.w, "%s: %v (dhcsr %s, sticky %s)\n",
			name, st.State(), hex32(uint32(st.DHCSR)), hex32(st.Sticky))
		return err
	}

	return p.emit(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("core")
		e.Str(name)
		e.FieldStart("state")
		e.Str(st.State().String())
		e.FieldStart("dhcsr")
		e.Str(hex32(uint32(st.DHCSR)))
		e.FieldStart("sticky")
		e.Str(hex32(st.Sticky))
		e.FieldStart("lockup")
		e.Bool(st.DHCSR.SLockup())
		e.FieldStart("sleeping")
		e.Bool(st.DHCSR.SSleep())
		e.ObjEnd()
	})
}

func (p *printer) report(name string, rep *cortexm.HaltReport) error {
	if !p.json {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: halted (%v) at %s", name, rep.Causes, hex32(rep.PC))
		if rep.CorrectedPC != rep.PC {
			fmt.Fprintf(&sb, ", breakpoint at %s", hex32(rep.CorrectedPC))
		}
		if rep.Exception != 0 {
			fmt.Fprintf(&sb, ", exception %d", rep.Exception)
		}
		if rep.Fatal {
			sb.WriteString(", locked up")
		}
		for _, h := range rep.Watchpoints {
			fmt.Fprintf(&sb, ", watchpoint %d", h.Index())
		}
		if f := rep.Fault; f != nil {
			fmt.Fprintf(&sb, "\n\t%v cfsr %s hfsr %s", f.Kind, hex32(f.CFSR), hex32(f.HFSR))
			if f.AddrValid {
				fmt.Fprintf(&sb, " address %s", hex32(f.Addr))
			}
			if f.Forced {
				sb.WriteString(" (forced)")
			}
		}
		_, err := fmt.Fprintln(p.w, sb.String())
		return err
	}

	return p.emit(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("core")
		e.Str(name)
		encodeReport(e, rep)
		e.ObjEnd()
	})
}

// encodeReport writes the fields of a halt report in the current object.
func encodeReport(e *jx.Encoder, rep *cortexm.HaltReport) {
	e.FieldStart("causes")
	e.Str(rep.Causes.String())
	e.FieldStart("pc")
	e.Str(hex32(rep.PC))
	e.FieldStart("corrected_pc")
	e.Str(hex32(rep.CorrectedPC))
	e.FieldStart("xpsr")
	e.Str(hex32(rep.XPSR))
	e.FieldStart("exception")
	e.Int(int(rep.Exception))
	e.FieldStart("fatal")
	e.Bool(rep.Fatal)

	e.FieldStart("watchpoints")
	e.ArrStart()
	for _, h := range rep.Watchpoints {
		e.Int(h.Index())
	}
	e.ArrEnd()

	e.FieldStart("fault")
	f := rep.Fault
	if f == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(f.Kind.String())
	e.FieldStart("cfsr")
	e.Str(hex32(f.CFSR))
	e.FieldStart("hfsr")
	e.Str(hex32(f.HFSR))
	e.FieldStart("sfsr")
	e.Str(hex32(f.SFSR))
	if f.AddrValid {
		e.FieldStart("addr")
		e.Str(hex32(f.Addr))
	}
	e.FieldStart("forced")
	e.Bool(f.Forced)
	e.ObjEnd()
}

func (p *printer) step(name string, res cortexm.StepResult) error {
	if !p.json {
		if res.MaskingUnreliable {
			if _, err := fmt.Fprintf(p.w, "%s: interrupt was pending, the step may have entered its handler\n", name); err != nil {
				return err
			}
		}
		return p.report(name, res.Report)
	}

	return p.emit(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("core")
		e.Str(name)
		e.FieldStart("masking_unreliable")
		e.Bool(res.MaskingUnreliable)
		encodeReport(e, res.Report)
		e.ObjEnd()
	})
}

func (p *printer) samples(name string, pcs []uint32) error {
	if !p.json {
		if _, err := fmt.Fprintf(p.w, "%s: %d samples\n", name, len(pcs)); err != nil {
			return err
		}
		hist := make(map[uint32]int)
		var order []uint32
		for _, pc := range pcs {
			if hist[pc] == 0 {
				order = append(order, pc)
			}
			hist[pc]++
		}
		for _, pc := range order {
			if _, err := fmt.Fprintf(p.w, "\t%s %d\n", hex32(pc), hist[pc]); err != nil {
				return err
			}
		}
		return nil
	}

	return p.emit(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("core")
		e.Str(name)
		e.FieldStart("samples")
		e.ArrStart()
		for _, pc := range pcs {
			e.Str(hex32(pc))
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
