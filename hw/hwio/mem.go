package hwio

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlagReadOnly  MemFlags = 1 << iota
)

// Mem is a word-addressed linear memory area. Accesses are word aligned:
// the two low address bits are ignored.
type Mem struct {
	Name  string
	Data  []uint32
	Flags MemFlags
	base  uint32
}

func (m *Mem) index(addr uint32) int {
	return int((addr - m.base) >> 2)
}

func (m *Mem) Read32(addr uint32, _ bool) (uint32, error) {
	i := m.index(addr)
	if i < 0 || i >= len(m.Data) {
		return 0, &BusError{Op: "read", Addr: addr, Err: ErrUnmapped}
	}
	return m.Data[i], nil
}

func (m *Mem) Write32(addr uint32, val uint32) error {
	if m.Flags&MemFlagReadOnly != 0 {
		return &BusError{Op: "write", Addr: addr, Err: ErrAccess}
	}
	i := m.index(addr)
	if i < 0 || i >= len(m.Data) {
		return &BusError{Op: "write", Addr: addr, Err: ErrUnmapped}
	}
	m.Data[i] = val
	return nil
}
