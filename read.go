package eeprom

// Read returns the value currently stored for tag, and whether it was
// present. It does not acquire the Flash unlock: it performs no
// programming, only memory-mapped loads.
//
// Read panics if tag is in the reserved range (the top bit set) or if
// no active page can be found, meaning Init was never called or the
// caller violated the single-writer discipline — both are programmer
// errors, not recoverable conditions.
func (c *Controller) Read(tag uint16) (uint16, bool, error) {
	if isReservedTag(tag) {
		panic("eeprom: reserved tag (top bit set)")
	}

	active, ok, err := c.findActive()
	if err != nil {
		return 0, false, err
	}
	if !ok {
		panic("eeprom: no active page; Init was not called or was interrupted")
	}

	for slot := int64(c.slotsPerPage()) - 1; slot >= 1; slot-- {
		t, d, err := c.readSlotPair(active, uint32(slot))
		if err != nil {
			return 0, false, err
		}
		if t == tag {
			return d, true, nil
		}
	}
	return 0, false, nil
}
