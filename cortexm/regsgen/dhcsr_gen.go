//go:build ignore

package main

//go:generate bitfield -pkg cortexm -out ../dhcsr.go

// Debug Halting Control and Status Register, as read back.
type DHCSR struct {
	CDebugEn  bool   `bitfield:"1"` // halting debug enabled
	CHalt     bool   `bitfield:"1"` // halt request
	CStep     bool   `bitfield:"1"` // single step request
	CMaskInts bool   `bitfield:"1"` // mask PendSV, SysTick and external interrupts
	_         uint16 `bitfield:"12"`
	SRegRdy   bool   `bitfield:"1"` // DCRSR transfer complete
	SHalt     bool   `bitfield:"1"` // core halted
	SSleep    bool   `bitfield:"1"` // core sleeping
	SLockup   bool   `bitfield:"1"` // core locked up
	_         uint8  `bitfield:"4"`
	SRetireSt bool   `bitfield:"1"` // instruction retired since last read (sticky)
	SResetSt  bool   `bitfield:"1"` // core reset since last read (sticky)
}
