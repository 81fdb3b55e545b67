package hwio

func GetBit32(v uint32, n uint) bool {
	return GetBiti32(v, n) != 0
}

func GetBiti32(v uint32, n uint) uint32 {
	return v >> (n) & 0x01
}

func SetBit32(v *uint32, n uint) {
	*v |= (1 << n)
}

func ClearBit32(v *uint32, n uint) {
	*v &= ^(1 << n)
}

func ClearBits32(v *uint32, mask uint32) {
	*v &= ^mask
}

// Field32 extracts the width-bit field starting at bit lo.
func Field32(v uint32, lo, width uint) uint32 {
	return v >> lo & (1<<width - 1)
}

// SetField32 returns v with the width-bit field at lo replaced by f.
func SetField32(v uint32, lo, width uint, f uint32) uint32 {
	mask := uint32(1<<width-1) << lo
	return v&^mask | f<<lo&mask
}
