package eeprom

// Write stores value under tag. After Write returns successfully,
// Read(tag) returns (value, true, nil), every other tag's last written
// value is preserved, and the format's invariants hold.
//
// The unlock is acquired once around the whole procedure, so
// compaction (if triggered) and the final slot program happen under a
// single scoped unlock.
//
// Write panics if tag is reserved, if no active page can be found
// (Init was not called), or if there is no free slot even after
// compacting the active page — the last case means the configured
// region is pathologically small relative to the number of distinct
// tags in use, a configuration error rather than a recoverable one.
func (c *Controller) Write(tag, value uint16) error {
	if isReservedTag(tag) {
		panic("eeprom: reserved tag (top bit set)")
	}

	return c.withUnlock(func() error {
		active, ok, err := c.findActive()
		if err != nil {
			return err
		}
		if !ok {
			panic("eeprom: no active page; Init was not called or was interrupted")
		}

		target := active
		last, err := c.readSlot(active, c.slotsPerPage()-1)
		if err != nil {
			return err
		}
		if last != erasedWord {
			target, err = c.rescueIfFull(active)
			if err != nil {
				return err
			}
		}

		for slot := uint32(1); slot < c.slotsPerPage(); slot++ {
			w, err := c.readSlot(target, slot)
			if err != nil {
				return err
			}
			if w == erasedWord {
				return c.programSlot(target, slot, tag, value)
			}
		}
		panic("eeprom: no free slot after compaction (too many variables)")
	})
}

// rescueIfFull copies the latest value for each live tag from the
// full src page into the next page, flips the active marker, and
// erases src. It returns the index of the new active page.
//
// The source is scanned tail-to-head, so the first match seen for any
// tag is its latest value (last-writer-wins by slot position); each
// tag is then copied at most once by checking the target before every
// copy. The destination is built from low slot index upward, which
// reverses the tags' relative write order — that is observable (it
// changes which slot Read stops at) but not semantically meaningful,
// since every tag in the destination is unique.
//
// The marker flip (setPageStatus on tgt) happens before the source
// erase: if power fails between them, both pages carry the active
// marker and both hold every live tag's latest value; Init keeps the
// lower-indexed one (see findActive) and erases the other. If the
// marker flip itself fails, src keeps its active status and tgt, whose
// marker is still erased, is wiped by Init — the write is lost, never
// corrupted. If power fails mid-copy, tgt is still not active, so
// Init erases it and src still carries the committed data.
func (c *Controller) rescueIfFull(src uint32) (uint32, error) {
	tgt := (src + 1) % c.cfg.PageCount
	tgtPos := uint32(1)

	for slot := int64(c.slotsPerPage()) - 1; slot >= 1; slot-- {
		tag, data, err := c.readSlotPair(src, uint32(slot))
		if err != nil {
			return 0, err
		}
		if tag == markerErased {
			continue
		}

		found, err := c.tagPresent(tgt, tgtPos, tag)
		if err != nil {
			return 0, err
		}
		if !found {
			if err := c.programSlot(tgt, tgtPos, tag, data); err != nil {
				return 0, err
			}
			tgtPos++
		}
	}

	if err := c.setPageStatus(tgt, markerActive); err != nil {
		return 0, err
	}
	if err := c.erasePage(src); err != nil {
		return 0, err
	}
	return tgt, nil
}

// tagPresent reports whether tag already occupies one of slots
// [1, upTo) of page.
func (c *Controller) tagPresent(page uint32, upTo uint32, tag uint16) (bool, error) {
	for slot := int64(upTo) - 1; slot >= 1; slot-- {
		t, _, err := c.readSlotPair(page, uint32(slot))
		if err != nil {
			return false, err
		}
		if t == tag {
			return true, nil
		}
	}
	return false, nil
}
