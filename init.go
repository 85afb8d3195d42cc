package eeprom

// Init makes the region satisfy the format's invariants regardless of
// its prior state. It does not run compaction: if the active page is
// full or partially compacted on entry, Init leaves it as-is and a
// subsequent Write drives compaction forward. The pages surrounding
// the active one are always forced back to fully erased, discarding
// any half-written rescue slots left by a crashed compaction — this is
// safe because compaction always flips the destination page's marker
// before erasing the source (see rescueIfFull): a crash before the
// flip leaves the source page active and the destination page
// not-active, and a not-active page never holds committed data; a
// crash after the flip leaves both pages active, each holding every
// live tag's latest value, and the lower-indexed one is kept.
func (c *Controller) Init() error {
	return c.withUnlock(func() error {
		active, ok, err := c.findActive()
		if err != nil {
			return err
		}
		for p := uint32(0); p < c.cfg.PageCount; p++ {
			if ok && p == active {
				continue
			}
			if err := c.erasePage(p); err != nil {
				return err
			}
		}
		if !ok {
			return c.setPageStatus(0, markerActive)
		}
		return nil
	})
}

// Erase wipes every value stored in the region and returns it to the
// canonical empty state: page 0 active with all data slots erased,
// every other page fully erased.
func (c *Controller) Erase() error {
	return c.withUnlock(func() error {
		for p := uint32(0); p < c.cfg.PageCount; p++ {
			if err := c.erasePage(p); err != nil {
				return err
			}
		}
		return c.setPageStatus(0, markerActive)
	})
}
