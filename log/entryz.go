package log

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

const maxZFields = 16

// EntryZ is a log entry built field by field. All methods accept a nil
// receiver, which is what Module.DebugZ & co return when the module/level
// pair is disabled, so a disabled log line costs a single branch.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [maxZFields]ZField
	zfidx int
}

var entryPool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := entryPool.Get().(*EntryZ)
	e.zfidx = 0
	return e
}

func (z *EntryZ) add() *ZField {
	if z.zfidx == maxZFields {
		return nil
	}
	f := &z.zfbuf[z.zfidx]
	*f = ZField{}
	z.zfidx++
	return f
}

func (z *EntryZ) uint(typ FieldType, key string, v uint64) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.Integer = typ, key, v
	}
	return z
}

func (z *EntryZ) Hex8(key string, v uint8) *EntryZ   { return z.uint(FieldTypeHex8, key, uint64(v)) }
func (z *EntryZ) Hex16(key string, v uint16) *EntryZ { return z.uint(FieldTypeHex16, key, uint64(v)) }
func (z *EntryZ) Hex32(key string, v uint32) *EntryZ { return z.uint(FieldTypeHex32, key, uint64(v)) }
func (z *EntryZ) Hex64(key string, v uint64) *EntryZ { return z.uint(FieldTypeHex64, key, v) }
func (z *EntryZ) Uint(key string, v uint64) *EntryZ  { return z.uint(FieldTypeUint, key, v) }
func (z *EntryZ) Int(key string, v int) *EntryZ      { return z.uint(FieldTypeInt, key, uint64(v)) }

func (z *EntryZ) Bool(key string, v bool) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.Boolean = FieldTypeBool, key, v
	}
	return z
}

func (z *EntryZ) String(key string, v string) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.String = FieldTypeString, key, v
	}
	return z
}

func (z *EntryZ) Stringer(key string, v fmt.Stringer) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.Interface = FieldTypeStringer, key, v
	}
	return z
}

func (z *EntryZ) Error(key string, err error) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.Error = FieldTypeError, key, err
	}
	return z
}

func (z *EntryZ) Duration(key string, d time.Duration) *EntryZ {
	if z == nil {
		return nil
	}
	if f := z.add(); f != nil {
		f.Type, f.Key, f.Duration = FieldTypeDuration, key, d
	}
	return z
}

// End emits the entry and recycles it.
func (z *EntryZ) End() {
	if z == nil {
		return
	}

	fields := make(logrus.Fields, z.zfidx+1)
	fields["_mod"] = z.mod.String()
	for i := range z.zfbuf[:z.zfidx] {
		fields[z.zfbuf[i].Key] = z.zfbuf[i].Value()
	}
	entry := logrus.StandardLogger().WithFields(fields)

	switch z.lvl {
	case DebugLevel:
		entry.Debug(z.msg)
	case InfoLevel:
		entry.Info(z.msg)
	case WarnLevel:
		entry.Warn(z.msg)
	case ErrorLevel:
		entry.Error(z.msg)
	case FatalLevel:
		entry.Fatal(z.msg)
	default:
		entry.Panic(z.msg)
	}

	for i := range z.zfbuf[:z.zfidx] {
		z.zfbuf[i] = ZField{}
	}
	entryPool.Put(z)
}
