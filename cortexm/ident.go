package cortexm

import (
	"fmt"

	"github.com/go-faster/errors"

	"armdbg/hw/hwio"
	"armdbg/log"
)

// Arch is the M-profile architecture version of a core.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchV6M
	ArchV7M
	ArchV8M
)

func (a Arch) String() string {
	switch a {
	case ArchV6M:
		return "ARMv6-M"
	case ArchV7M:
		return "ARMv7-M"
	case ArchV8M:
		return "ARMv8-M"
	}
	return "unknown"
}

// Part feature flags.
const (
	FlagFPv4 = 1 << iota
	FlagFPv5
	// The MEM-AP TAR auto-increment wraps at 4KB instead of 1KB.
	FlagTARAutoIncr4K
)

type partInfo struct {
	implPart uint32
	name     string
	arch     Arch
	flags    uint32
}

func makeCPUID(impl, partno uint32) uint32 {
	return impl<<cpuidImplementerPos | partno<<cpuidPartnoPos
}

var parts = []partInfo{
	{makeCPUID(ImplementerARMChina, 0x132), "STAR-MC1", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerARM, 0xC20), "Cortex-M0", ArchV6M, 0},
	{makeCPUID(ImplementerARM, 0xC21), "Cortex-M1", ArchV6M, 0},
	{makeCPUID(ImplementerARM, 0xC23), "Cortex-M3", ArchV7M, FlagTARAutoIncr4K},
	{makeCPUID(ImplementerARM, 0xC24), "Cortex-M4", ArchV7M, FlagFPv4 | FlagTARAutoIncr4K},
	{makeCPUID(ImplementerARM, 0xC27), "Cortex-M7", ArchV7M, FlagFPv5},
	{makeCPUID(ImplementerARM, 0xC60), "Cortex-M0+", ArchV6M, 0},
	{makeCPUID(ImplementerARM, 0xD20), "Cortex-M23", ArchV8M, 0},
	{makeCPUID(ImplementerARM, 0xD21), "Cortex-M33", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerARM, 0xD31), "Cortex-M35P", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerARMChina, 0xD24), "Cortex-M52", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerARM, 0xD22), "Cortex-M55", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerARM, 0xD23), "Cortex-M85", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerInfineon, 0xDB0), "Infineon-SLx2", ArchV8M, 0},
	{makeCPUID(ImplementerRealtek, 0xD20), "Real-M200 (KM0)", ArchV8M, 0},
	{makeCPUID(ImplementerRealtek, 0xD22), "Real-M300 (KM4)", ArchV8M, FlagFPv5},
	{makeCPUID(ImplementerRealtek, 0xD23), "Real-M500", ArchV8M, FlagFPv5},
}

var cortexM7 = makeCPUID(ImplementerARM, 0xC27)

// Identity is what Identify learns about a core. It never changes after
// examination.
type Identity struct {
	CPUID       uint32
	Implementer uint32
	PartNo      uint32
	Variant     uint32 // the rN of rNpM
	Revision    uint32 // the pM of rNpM

	Name  string
	Known bool
	Arch  Arch
	Flags uint32

	SecurityExt bool

	// Erratum 702596: C_MASKINTS does not apply to interrupts already
	// pending when a step starts.
	MaskIntsErratum bool

	// Erratum 3092511: the core can halt at the wrong address when a
	// breakpoint and an exception happen at the same time.
	IncorrectHaltErratum bool
}

// ImplPart returns the masked implementer and part number.
func (id Identity) ImplPart() uint32 { return id.CPUID & cpuidImplPartMask }

func (id Identity) HasFPv4() bool       { return id.Flags&FlagFPv4 != 0 }
func (id Identity) HasFPv5() bool       { return id.Flags&FlagFPv5 != 0 }
func (id Identity) TARAutoIncr4K() bool { return id.Flags&FlagTARAutoIncr4K != 0 }

// TARAutoIncrBlock returns the size of the block within which the MEM-AP
// address auto-increments.
func (id Identity) TARAutoIncrBlock() uint32 {
	if id.TARAutoIncr4K() {
		return 4096
	}
	return 1024
}

func (id Identity) String() string {
	s := fmt.Sprintf("%s r%dp%d (%s", id.Name, id.Variant, id.Revision, id.Arch)
	switch {
	case id.HasFPv5():
		s += ", FPv5"
	case id.HasFPv4():
		s += ", FPv4"
	}
	if id.SecurityExt {
		s += ", security extension"
	}
	return s + ")"
}

// Identify reads CPUID and classifies the core. Unknown parts are not an
// error, the architecture is then inferred from the CPUID architecture
// field and DAUTHSTATUS.
func Identify(bus hwio.Bus) (Identity, error) {
	cpuid, err := bus.Read32(CPUID)
	if err != nil {
		return Identity{}, errors.Wrap(err, "read CPUID")
	}

	id := Identity{
		CPUID:       cpuid,
		Implementer: cpuid >> cpuidImplementerPos,
		PartNo:      cpuid >> cpuidPartnoPos & 0xFFF,
		Variant:     cpuid >> cpuidVariantPos & 0xF,
		Revision:    cpuid & 0xF,
		Name:        "Unknown",
	}

	for _, p := range parts {
		if p.implPart == id.ImplPart() {
			id.Name, id.Arch, id.Flags, id.Known = p.name, p.arch, p.flags, true
			break
		}
	}

	// Only ARMv8-M defines DAUTHSTATUS.SID, on older cores the address reads
	// as zero or is not mapped at all.
	secure := false
	if id.Arch == ArchV8M || !id.Known {
		auth, err := bus.Read32(DAUTHSTATUS)
		switch {
		case err == nil:
			secure = auth&DAUTHSTATUS_SID_MASK != 0
		case id.Known:
			return Identity{}, errors.Wrap(err, "read DAUTHSTATUS")
		}
	}

	if !id.Known {
		switch {
		case cpuid>>cpuidArchPos&0xF == 0xC:
			id.Arch = ArchV6M
		case secure:
			id.Arch = ArchV8M
		default:
			id.Arch = ArchV7M
		}
		log.ModCore.WarnZ("unknown core, inferring architecture").
			Hex32("cpuid", cpuid).
			Stringer("arch", id.Arch).
			End()
	}
	id.SecurityExt = id.Arch == ArchV8M && secure

	if id.ImplPart() == cortexM7 {
		if id.Variant == 0 && id.Revision < 2 {
			id.MaskIntsErratum = true
			log.ModCore.WarnZ("Cortex-M7 erratum 702596: masking interrupts does not apply to pending ones").End()
		}
		if id.Variant < 1 || id.Variant == 1 && id.Revision <= 2 {
			id.IncorrectHaltErratum = true
			log.ModCore.WarnZ("Cortex-M7 erratum 3092511: halt address may be incorrect").End()
		}
	}

	log.ModCore.InfoZ("core identified").
		String("name", id.Name).
		Hex32("cpuid", cpuid).
		Stringer("arch", id.Arch).
		Bool("secure", id.SecurityExt).
		End()
	return id, nil
}
