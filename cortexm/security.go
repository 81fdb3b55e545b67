package cortexm

import (
	stderrors "errors"

	"armdbg/log"
)

// SavedSecurity holds the security context replaced by ForceSecure. Only
// the dirty registers are written back by RestoreSecurity.
type SavedSecurity struct {
	DSCSR   uint32
	SAUCtrl uint32
	MPUCtrl uint32

	DSCSRDirty   bool
	SAUCtrlDirty bool
	MPUCtrlDirty bool
}

// ForceSecure switches debugger accesses to the secure state, with the SAU
// and the MPU disabled, so that every address is reachable. It is a no-op
// without the security extension. On error the registers already changed
// are restored.
func (c *Core) ForceSecure() (SavedSecurity, error) {
	var saved SavedSecurity
	if err := c.checkExamined(); err != nil {
		return saved, err
	}
	if !c.id.SecurityExt {
		return saved, nil
	}

	fail := func(err error) (SavedSecurity, error) {
		return SavedSecurity{}, stderrors.Join(err, c.RestoreSecurity(saved))
	}

	dscsr, err := c.read(DCB_DSCSR)
	if err != nil {
		return fail(err)
	}
	saved.DSCSR = dscsr
	if dscsr&DSCSR_CDS == 0 {
		if err := c.write(DCB_DSCSR, dscsr&^DSCSR_CDSKEY|DSCSR_CDS); err != nil {
			return fail(err)
		}
		saved.DSCSRDirty = true
	}

	sau, err := c.read(SAU_CTRL)
	if err != nil {
		return fail(err)
	}
	saved.SAUCtrl = sau
	if sau&SAU_CTRL_ENABLE != 0 {
		if err := c.write(SAU_CTRL, sau&^SAU_CTRL_ENABLE); err != nil {
			return fail(err)
		}
		saved.SAUCtrlDirty = true
	}

	mpu, err := c.read(MPU_CTRL)
	if err != nil {
		return fail(err)
	}
	saved.MPUCtrl = mpu
	if mpu&MPU_CTRL_ENABLE != 0 {
		if err := c.write(MPU_CTRL, mpu&^MPU_CTRL_ENABLE); err != nil {
			return fail(err)
		}
		saved.MPUCtrlDirty = true
	}

	log.ModSec.DebugZ("forced secure").
		Hex32("dscsr", saved.DSCSR).
		Hex32("sau_ctrl", saved.SAUCtrl).
		Hex32("mpu_ctrl", saved.MPUCtrl).
		End()
	return saved, nil
}

// RestoreSecurity writes back the registers ForceSecure changed, in reverse
// order. Every register is attempted, errors are joined.
func (c *Core) RestoreSecurity(saved SavedSecurity) error {
	var errs []error
	if saved.MPUCtrlDirty {
		errs = append(errs, c.write(MPU_CTRL, saved.MPUCtrl))
	}
	if saved.SAUCtrlDirty {
		errs = append(errs, c.write(SAU_CTRL, saved.SAUCtrl))
	}
	if saved.DSCSRDirty {
		errs = append(errs, c.write(DCB_DSCSR, saved.DSCSR&^DSCSR_CDSKEY))
	}
	err := stderrors.Join(errs...)
	log.ModSec.DebugZ("security restored").Error("err", err).End()
	return err
}

// WithSecure runs fn with the core forced secure, and restores the previous
// context afterwards whatever fn returns.
func (c *Core) WithSecure(fn func() error) (err error) {
	saved, err := c.ForceSecure()
	if err != nil {
		return err
	}
	defer func() {
		err = stderrors.Join(err, c.RestoreSecurity(saved))
	}()
	return fn()
}
