package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type bankReg struct {
	regPtr any
	offset uint32
}

type regTag struct {
	offset    uint32
	hasOffset bool
	bank      int
	size      int
	reset     uint32
	rwmask    uint32
	hasRWMask bool
	readonly  bool
	writeonly bool
	rcb, wcb  string
	pcb       string
}

func parseTag(field reflect.StructField, tag string) (regTag, error) {
	var rt regTag
	for _, opt := range strings.Split(tag, ",") {
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")
		parseNum := func() (uint64, error) {
			n, err := strconv.ParseUint(val, 0, 32)
			if err != nil {
				return 0, fmt.Errorf("field %s: invalid %s: %w", field.Name, key, err)
			}
			return n, nil
		}
		cbName := func(prefix string) string {
			if hasVal {
				return val
			}
			return prefix + strings.ToUpper(field.Name)
		}

		switch key {
		case "offset":
			n, err := parseNum()
			if err != nil {
				return rt, err
			}
			rt.offset, rt.hasOffset = uint32(n), true
		case "bank":
			n, err := parseNum()
			if err != nil {
				return rt, err
			}
			rt.bank = int(n)
		case "size":
			n, err := parseNum()
			if err != nil {
				return rt, err
			}
			rt.size = int(n)
		case "reset":
			n, err := parseNum()
			if err != nil {
				return rt, err
			}
			rt.reset = uint32(n)
		case "rwmask":
			n, err := parseNum()
			if err != nil {
				return rt, err
			}
			rt.rwmask, rt.hasRWMask = uint32(n), true
		case "readonly":
			rt.readonly = true
		case "writeonly":
			rt.writeonly = true
		case "rcb":
			rt.rcb = cbName("Read")
		case "wcb":
			rt.wcb = cbName("Write")
		case "pcb":
			rt.pcb = cbName("Peek")
		default:
			return rt, fmt.Errorf("field %s: unknown hwio option %q", field.Name, key)
		}
	}
	return rt, nil
}

func bankValue(bank any) (reflect.Value, error) {
	v := reflect.ValueOf(bank)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("bank must be a pointer to struct, got %T", bank)
	}
	return v, nil
}

// bankGetRegs returns the registers of the given bank number, along with
// their offset.
func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	v, err := bankValue(bank)
	if err != nil {
		return nil, err
	}

	var regs []bankReg
	st := v.Elem().Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseTag(field, tag)
		if err != nil {
			return nil, err
		}
		if !rt.hasOffset || rt.bank != bankNum {
			continue
		}
		regs = append(regs, bankReg{
			regPtr: v.Elem().Field(i).Addr().Interface(),
			offset: rt.offset,
		})
	}
	return regs, nil
}

// InitRegs initializes the registers of a bank from their struct tags.
//
//	offset=0x12   Byte offset of the register within the bank. Registers
//	              without offset are not mapped by Table.MapBank.
//	bank=N        Bank number (default 0), so a struct can expose several banks.
//	reset=0x34    Initial value.
//	rwmask=0xF0   Writable bits, the other ones are read-only (default: all).
//	size=0x100    Byte size of a Device or Mem area.
//	readonly      Writes are rejected.
//	writeonly     Reads are rejected.
//	rcb[=Name]    Read callback, method ReadFIELD by default.
//	wcb[=Name]    Write callback, method WriteFIELD by default.
//	pcb[=Name]    Peek callback, method PeekFIELD by default.
func InitRegs(bank any) error {
	v, err := bankValue(bank)
	if err != nil {
		return err
	}

	st := v.Elem().Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseTag(field, tag)
		if err != nil {
			return err
		}

		var flags RWFlags
		if rt.readonly {
			flags |= ReadOnlyFlag
		}
		if rt.writeonly {
			flags |= WriteOnlyFlag
		}

		method := func(name string) (reflect.Value, error) {
			m := v.MethodByName(name)
			if !m.IsValid() {
				return m, fmt.Errorf("field %s: missing method %s on %s", field.Name, name, st.Name())
			}
			return m, nil
		}

		switch r := v.Elem().Field(i).Addr().Interface().(type) {
		case *Reg32:
			r.Name = field.Name
			r.Value = rt.reset
			r.Flags = flags
			if rt.hasRWMask {
				r.RoMask = ^rt.rwmask
			}
			if rt.rcb != "" {
				m, err := method(rt.rcb)
				if err != nil {
					return err
				}
				r.ReadCb = m.Interface().(func(uint32) uint32)
			}
			if rt.pcb != "" {
				m, err := method(rt.pcb)
				if err != nil {
					return err
				}
				r.PeekCb = m.Interface().(func(uint32) uint32)
			}
			if rt.wcb != "" {
				m, err := method(rt.wcb)
				if err != nil {
					return err
				}
				r.WriteCb = m.Interface().(func(uint32, uint32))
			}

		case *Device:
			r.Name = field.Name
			r.Size = rt.size
			r.Flags = flags
			if rt.rcb != "" {
				m, err := method(rt.rcb)
				if err != nil {
					return err
				}
				r.ReadCb = m.Interface().(func(uint32) uint32)
			}
			if rt.pcb != "" {
				m, err := method(rt.pcb)
				if err != nil {
					return err
				}
				r.PeekCb = m.Interface().(func(uint32) uint32)
			}
			if rt.wcb != "" {
				m, err := method(rt.wcb)
				if err != nil {
					return err
				}
				r.WriteCb = m.Interface().(func(uint32, uint32))
			}

		case *Mem:
			r.Name = field.Name
			if rt.readonly {
				r.Flags |= MemFlagReadOnly
			}
			if rt.size != 0 && len(r.Data) == 0 {
				r.Data = make([]uint32, rt.size/4)
			}

		default:
			return fmt.Errorf("field %s: invalid reg type %T", field.Name, r)
		}
	}
	return nil
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(bank any) {
	if err := InitRegs(bank); err != nil {
		panic(err)
	}
}
