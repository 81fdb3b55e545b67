package cortexm

import "strconv"

// System control space and debug registers.
const (
	CPUID = 0xE000ED00

	DCB_DHCSR = 0xE000EDF0
	DCB_DCRSR = 0xE000EDF4
	DCB_DCRDR = 0xE000EDF8
	DCB_DEMCR = 0xE000EDFC
	DCB_DSCSR = 0xE000EE08

	DAUTHSTATUS = 0xE000EFB8

	DWT_CTRL      = 0xE0001000
	DWT_CYCCNT    = 0xE0001004
	DWT_PCSR      = 0xE000101C
	DWT_COMP0     = 0xE0001020
	DWT_MASK0     = 0xE0001024
	DWT_FUNCTION0 = 0xE0001028
	DWT_DEVARCH   = 0xE0001FBC

	FP_CTRL  = 0xE0002000
	FP_REMAP = 0xE0002004
	FP_COMP0 = 0xE0002008

	NVIC_ICSR  = 0xE000ED04
	NVIC_AIRCR = 0xE000ED0C
	NVIC_CFSR  = 0xE000ED28
	NVIC_HFSR  = 0xE000ED2C
	NVIC_DFSR  = 0xE000ED30
	NVIC_MMFAR = 0xE000ED34
	NVIC_BFAR  = 0xE000ED38
	MPU_CTRL   = 0xE000ED94
	SAU_CTRL   = 0xE000EDD0
	NVIC_SFSR  = 0xE000EDE4
	NVIC_SFAR  = 0xE000EDE8
)

// CPUID fields.
const (
	cpuidImplementerPos = 24
	cpuidVariantPos     = 20
	cpuidArchPos        = 16
	cpuidPartnoPos      = 4

	cpuidImplPartMask = 0xFF00FFF0
)

const (
	ImplementerARM      = 0x41
	ImplementerInfineon = 0x49
	ImplementerARMChina = 0x63
	ImplementerRealtek  = 0x72
)

const DAUTHSTATUS_SID_MASK = 0x00000030

// DHCSR bits. Writes must carry DBGKEY in the upper half.
const (
	DBGKEY = 0xA05F << 16

	C_DEBUGEN   = 1 << 0
	C_HALT      = 1 << 1
	C_STEP      = 1 << 2
	C_MASKINTS  = 1 << 3
	S_REGRDY    = 1 << 16
	S_HALT      = 1 << 17
	S_SLEEP     = 1 << 18
	S_LOCKUP    = 1 << 19
	S_RETIRE_ST = 1 << 24
	S_RESET_ST  = 1 << 25

	dhcsrCtrlMask   = 0x0000FFFF
	dhcsrStickyMask = S_RETIRE_ST | S_RESET_ST
)

// DCRSR.
const (
	DCRSR_WNR = 1 << 16

	RegSP   = 13
	RegLR   = 14
	RegPC   = 15 // DebugReturnAddress
	RegXPSR = 16
	RegMSP  = 17
	RegPSP  = 18
)

// DEMCR bits.
const (
	TRCENA       = 1 << 24
	VC_HARDERR   = 1 << 10
	VC_INTERR    = 1 << 9
	VC_BUSERR    = 1 << 8
	VC_STATERR   = 1 << 7
	VC_CHKERR    = 1 << 6
	VC_NOCPERR   = 1 << 5
	VC_MMERR     = 1 << 4
	VC_CORERESET = 1 << 0

	vcFaultMask = VC_HARDERR | VC_INTERR | VC_BUSERR | VC_STATERR | VC_CHKERR | VC_NOCPERR | VC_MMERR
	vcMask      = vcFaultMask | VC_CORERESET
)

// DSCSR bits.
const (
	DSCSR_CDSKEY = 1 << 17
	DSCSR_CDS    = 1 << 16
)

// AIRCR.
const (
	AIRCR_VECTKEY       = 0x5FA << 16
	AIRCR_SYSRESETREQ   = 1 << 2
	AIRCR_VECTCLRACTIVE = 1 << 1
	AIRCR_VECTRESET     = 1 << 0
)

// ICSR.
const (
	ICSR_ISRPENDING   = 1 << 22
	icsrVectPendPos   = 12
	icsrVectActiveMsk = 0x1FF
)

// DFSR bits, write one to clear.
const (
	DFSR_HALTED   = 1
	DFSR_BKPT     = 2
	DFSR_DWTTRAP  = 4
	DFSR_VCATCH   = 8
	DFSR_EXTERNAL = 16

	dfsrMask = 0x1F
)

// Fault status bits.
const (
	CFSR_MMARVALID = 1 << 7
	CFSR_BFARVALID = 1 << 15
	HFSR_VECTTBL   = 1 << 1
	HFSR_FORCED    = 1 << 30
	SFSR_SFARVALID = 1 << 6

	cfsrMMFSRMask = 0x000000FF
	cfsrBFSRMask  = 0x0000FF00
	cfsrUFSRMask  = 0xFFFF0000
)

const (
	MPU_CTRL_ENABLE = 1 << 0
	SAU_CTRL_ENABLE = 1 << 0
)

// FPB.
const (
	FP_CTRL_ENABLE = 1 << 0
	FP_CTRL_KEY    = 1 << 1

	FPCR_REPLACE_REMAP     = 0 << 30
	FPCR_REPLACE_BKPT_LOW  = 1 << 30
	FPCR_REPLACE_BKPT_HIGH = 2 << 30
	FPCR_REPLACE_BKPT_BOTH = 3 << 30

	fpcrReplaceMask = 3 << 30
	fpcrEnable      = 1 << 0
	fpcrRev0Addr    = 0x1FFFFFFC

	// Revision 0 comparators only match the code region.
	fpRev0Limit = 0x20000000
)

// DWT.
const (
	DWT_CTRL_CYCCNTENA = 1 << 0
	DWT_CTRL_NOCYCCNT  = 1 << 25

	DWT_FUNCTION_MATCHED = 1 << 24

	DWT_DEVARCH_ARMV8M_V2_0 = 0x101A02
	DWT_DEVARCH_ARMV8M_V2_1 = 0x111A02

	dwtDevarchMask = 0x1FFFFF
	dwtCompStride  = 0x10

	// DWT_PCSR reads this value when no sample is available (core halted
	// or sampling not implemented).
	pcsrNoSample = 0xFFFFFFFF
)

var regNames = map[uint32]string{
	CPUID:       "CPUID",
	DCB_DHCSR:   "DHCSR",
	DCB_DCRSR:   "DCRSR",
	DCB_DCRDR:   "DCRDR",
	DCB_DEMCR:   "DEMCR",
	DCB_DSCSR:   "DSCSR",
	DAUTHSTATUS: "DAUTHSTATUS",
	DWT_CTRL:    "DWT_CTRL",
	DWT_CYCCNT:  "DWT_CYCCNT",
	DWT_PCSR:    "DWT_PCSR",
	DWT_DEVARCH: "DWT_DEVARCH",
	FP_CTRL:     "FP_CTRL",
	FP_REMAP:    "FP_REMAP",
	NVIC_ICSR:   "ICSR",
	NVIC_AIRCR:  "AIRCR",
	NVIC_CFSR:   "CFSR",
	NVIC_HFSR:   "HFSR",
	NVIC_DFSR:   "DFSR",
	NVIC_MMFAR:  "MMFAR",
	NVIC_BFAR:   "BFAR",
	MPU_CTRL:    "MPU_CTRL",
	SAU_CTRL:    "SAU_CTRL",
	NVIC_SFSR:   "SFSR",
	NVIC_SFAR:   "SFAR",
}

// RegName returns a human readable name for a debug register address.
func RegName(addr uint32) string {
	if name, ok := regNames[addr]; ok {
		return name
	}
	switch {
	case addr >= FP_COMP0 && addr < FP_COMP0+4*128:
		return "FP_COMP" + strconv.Itoa(int(addr-FP_COMP0)/4)
	case addr >= DWT_COMP0 && addr < DWT_COMP0+dwtCompStride*16:
		n := strconv.Itoa(int(addr-DWT_COMP0) / dwtCompStride)
		switch (addr - DWT_COMP0) % dwtCompStride {
		case 0:
			return "DWT_COMP" + n
		case 4:
			return "DWT_MASK" + n
		case 8:
			return "DWT_FUNCTION" + n
		}
	}
	return "mem"
}

