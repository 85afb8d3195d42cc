package eeprom

const (
	// markerActive identifies the currently live page. Any other
	// value in a page's status half-word is "not active".
	markerActive uint16 = 0xABCD
	// markerErased is the status half-word of a page with no live
	// role (freshly erased).
	markerErased uint16 = 0xFFFF

	// erasedWord is an all-ones 32-bit slot: erased, or never written.
	erasedWord uint32 = 0xFFFF_FFFF

	// reservedTagBits masks the range reserved by policy (the whole
	// top half of the tag space, including the erased-slot sentinel
	// 0xFFFF itself). Legal tags are 0x0000..=0x7FFF.
	reservedTagBits uint16 = 0x8000
)

// Controller is the EEPROM controller. It owns its configuration and a
// reference to a Flash collaborator; it holds no RAM-side index or
// cache; the Flash region is the single source of truth.
type Controller struct {
	cfg   Config
	flash Flash
}

// New creates an EEPROM controller over the given Flash collaborator.
// cfg is validated by panic (see Config); construction does not touch
// Flash. Init must be called once before the first Read or Write.
func New(cfg Config, flash Flash) *Controller {
	cfg.validate()
	return &Controller{cfg: cfg, flash: flash}
}

func (c *Controller) slotsPerPage() uint32 { return c.cfg.slotsPerPage() }

// itemOffset maps (page, slot) to a byte offset from the Flash
// region's origin. Preconditions (0 <= page < PageCount, 0 <= slot <
// slotsPerPage) are programmer errors, not checked at runtime: every
// caller within this package derives page and slot from loop bounds
// that already respect them.
func (c *Controller) itemOffset(page, slot uint32) uint32 {
	const slotSize = 4
	return (c.cfg.FirstPage+page)*(c.slotsPerPage()*slotSize) + slot*slotSize
}

func (c *Controller) pageOffset(page uint32) uint32 {
	return c.itemOffset(page, 0)
}

// readSlot reads a data slot as a packed 32-bit word: the low
// half-word is the tag, the high half-word is the data.
func (c *Controller) readSlot(page, slot uint32) (uint32, error) {
	off := c.itemOffset(page, slot)
	tag, err := c.flash.ReadHalfWord(off)
	if err != nil {
		return 0, err
	}
	data, err := c.flash.ReadHalfWord(off + 2)
	if err != nil {
		return 0, err
	}
	return uint32(data)<<16 | uint32(tag), nil
}

func (c *Controller) readSlotPair(page, slot uint32) (tag, data uint16, err error) {
	w, err := c.readSlot(page, slot)
	if err != nil {
		return 0, 0, err
	}
	return uint16(w), uint16(w >> 16), nil
}

// programSlot writes a data slot. It writes the data half-word first
// and the tag half-word second: if power is lost between the two
// writes, the tag stays 0xFFFF and the slot is still classified as
// erased (see erasedWord / I5), so the stale data half-word is
// harmless. Reversing the order could leave a slot with a legal tag
// and 0xFFFF data, silently returned to the caller as corruption.
func (c *Controller) programSlot(page, slot uint32, tag, data uint16) error {
	off := c.itemOffset(page, slot)
	if err := c.flash.WriteHalfWord(off+2, data); err != nil {
		return err
	}
	return c.flash.WriteHalfWord(off, tag)
}

func (c *Controller) pageStatus(page uint32) (uint16, error) {
	return c.flash.ReadHalfWord(c.pageOffset(page))
}

func (c *Controller) setPageStatus(page uint32, marker uint16) error {
	return c.flash.WriteHalfWord(c.pageOffset(page), marker)
}

// isPageDirty scans every slot of page and reports whether any of
// them is not the erased sentinel.
func (c *Controller) isPageDirty(page uint32) (bool, error) {
	for slot := uint32(0); slot < c.slotsPerPage(); slot++ {
		w, err := c.readSlot(page, slot)
		if err != nil {
			return false, err
		}
		if w != erasedWord {
			return true, nil
		}
	}
	return false, nil
}

// erasePage is a no-op when the page is already clean; otherwise it
// invokes the Flash erase primitive and asserts non-dirtiness
// afterward. An assertion failure here means the Flash collaborator
// violated its own erase contract, which is a programmer/hardware
// error, not a recoverable one.
func (c *Controller) erasePage(page uint32) error {
	dirty, err := c.isPageDirty(page)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if err := c.flash.ErasePage(c.pageOffset(page)); err != nil {
		return err
	}
	stillDirty, err := c.isPageDirty(page)
	if err != nil {
		return err
	}
	if stillDirty {
		panic("eeprom: page still dirty after erase")
	}
	return nil
}

// findActive returns the lowest-indexed page whose marker is
// markerActive. Two pages marked active is a corruption that Init
// should never let persist; if it is ever observed, the lowest index
// wins, same as for the normal case.
func (c *Controller) findActive() (page uint32, ok bool, err error) {
	for p := uint32(0); p < c.cfg.PageCount; p++ {
		status, err := c.pageStatus(p)
		if err != nil {
			return 0, false, err
		}
		if status == markerActive {
			return p, true, nil
		}
	}
	return 0, false, nil
}

// withUnlock acquires a scoped unlock of the Flash collaborator (if it
// implements Unlocker), runs fn, and releases the unlock on every exit
// path, including a panic unwinding through fn.
func (c *Controller) withUnlock(fn func() error) (err error) {
	u, ok := c.flash.(Unlocker)
	if !ok {
		return fn()
	}
	release, err := u.Unlock()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn()
}

func isReservedTag(tag uint16) bool {
	return tag&reservedTagBits != 0
}
