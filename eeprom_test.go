package eeprom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentam/eeprom"
)

// E1: fresh erased region, Init() marks page 0 active and touches
// nothing else.
func TestInit_FreshErasedRegion(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()

	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	got := flash.Image()
	assert.Equal(t, uint16(0xABCD), got[0])
	for i := 1; i < len(got); i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "half-word %d", i)
	}
}

// E2: an all-zero region recovers to the same state as a fresh erased
// region.
func TestInit_AllZeroRegion(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	im.zeroFill()
	flash := im.toFlash()

	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	got := flash.Image()
	assert.Equal(t, uint16(0xABCD), got[0])
	for i := 1; i < len(got); i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "half-word %d", i)
	}
}

// E3 + P1: Init on an already-valid region is idempotent.
func TestInit_AlreadyValid_IsIdempotent(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	im.setMarker(0, 0xABCD)
	im.setSlot(0, 1, 1, 0xDEAD)
	im.setSlot(0, 2, 2, 0xBEEF)
	flash := im.toFlash()

	before := append([]uint16(nil), flash.Image()...)

	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())
	after := flash.Image()
	assert.Equal(t, before, after)

	// Running Init a second time changes nothing further.
	require.NoError(t, c.Init())
	assert.Equal(t, after, flash.Image())
}

// E4: a fresh write sequence lays out slots in order, low to high.
func TestWrite_Sequence(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()

	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())
	require.NoError(t, c.Write(1, 0xDEAD))
	require.NoError(t, c.Write(2, 0xBEEF))

	got := flash.Image()
	spp := slotsPerPage()

	assert.Equal(t, uint16(0xABCD), got[0])
	assert.Equal(t, uint16(1), got[2])
	assert.Equal(t, uint16(0xDEAD), got[3])
	assert.Equal(t, uint16(2), got[4])
	assert.Equal(t, uint16(0xBEEF), got[5])
	for i := 6; i < spp*2; i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "page 0 half-word %d", i)
	}
	for i := spp * 2; i < spp*2*2; i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "page 1 half-word %d", i)
	}
}

// E5/E6: writing into a full active page triggers compaction: the
// latest value per tag survives, the marker flips, the source is
// erased, and the new value is appended.
func TestWrite_CompactionOnFull(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	im.setMarker(0, 0xABCD)

	spp := uint32(slotsPerPage())
	var lastTag1, lastTag2 uint16
	for slot := uint32(1); slot < spp; slot++ {
		if slot%2 == 1 {
			im.setSlot(0, slot, 1, uint16(slot))
			lastTag1 = uint16(slot)
		} else {
			im.setSlot(0, slot, 2, uint16(slot))
			lastTag2 = uint16(slot)
		}
	}
	flash := im.toFlash()

	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init()) // page 0 is already active; Init leaves it untouched

	require.NoError(t, c.Write(3, 0xACDB))

	got := flash.Image()

	// Page 0 (source) is fully erased.
	for i := uint32(0); i < spp*2; i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "page 0 half-word %d", i)
	}

	// Page 1 (target) holds the marker, the two surviving tags, then
	// the newly appended one.
	base := spp * 2
	assert.Equal(t, uint16(0xABCD), got[base])
	assert.Equal(t, uint16(1), got[base+2])
	assert.Equal(t, lastTag1, got[base+3])
	assert.Equal(t, uint16(2), got[base+4])
	assert.Equal(t, lastTag2, got[base+5])
	assert.Equal(t, uint16(3), got[base+6])
	assert.Equal(t, uint16(0xACDB), got[base+7])

	// E6: reads reflect the compacted, latest-value-per-tag state.
	v1, ok, err := c.Read(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lastTag1, v1)

	v2, ok, err := c.Read(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lastTag2, v2)

	v3, ok, err := c.Read(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(0xACDB), v3)

	_, ok, err = c.Read(4)
	require.NoError(t, err)
	assert.False(t, ok)
}

// P3: round-trip for every legal tag.
func TestRoundTrip(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	tags := []uint16{0x0000, 0x0001, 0x007F, 0x00FF, 0x7FFE, 0x7FFF}
	for _, tag := range tags {
		require.NoError(t, c.Write(tag, 0x1234))
		v, ok, err := c.Read(tag)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint16(0x1234), v)
	}
}

// P4: last-writer-wins across repeated writes, including across a
// compaction forced in between.
func TestLastWriterWins(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	for v := uint16(1); v <= 5; v++ {
		require.NoError(t, c.Write(7, v))
	}
	got, ok, err := c.Read(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(5), got)

	// Force enough writes of a second tag to overflow the page at
	// least once; tag 7's latest value must still win.
	spp := uint32(slotsPerPage())
	for i := uint32(0); i < spp*3; i++ {
		require.NoError(t, c.Write(8, uint16(i)))
	}
	require.NoError(t, c.Write(7, 99))
	got, ok, err = c.Read(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(99), got)
}

// P5: writing T1 never alters T2.
func TestIndependence(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	require.NoError(t, c.Write(1, 0x1111))
	require.NoError(t, c.Write(2, 0x2222))
	require.NoError(t, c.Write(1, 0x3333))

	v2, ok, err := c.Read(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(0x2222), v2)
}

// P7: writing the full set of distinct tags a single page can hold
// never runs out of room (with two pages this fills every data slot of
// the active page; no compaction is triggered).
func TestWriteFillsRegionWithoutLeak(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	spp := slotsPerPage()
	maxTags := (spp - 1) * (testPageCount - 1)
	for i := 0; i < maxTags; i++ {
		require.NoError(t, c.Write(uint16(i), uint16(i)))
	}
	for i := 0; i < maxTags; i++ {
		v, ok, err := c.Read(uint16(i))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint16(i), v)
	}
}

// Reserved tags and missing-init are programmer errors and panic.
func TestReservedTagPanics(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())

	assert.Panics(t, func() { _, _, _ = c.Read(0x8000) })
	assert.Panics(t, func() { _ = c.Write(0xFFFF, 0) })
}

func TestNoActivePagePanics(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)

	assert.Panics(t, func() { _, _, _ = c.Read(1) })
	assert.Panics(t, func() { _ = c.Write(1, 1) })
}

func TestInvalidConfigPanics(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()

	assert.Panics(t, func() {
		eeprom.New(eeprom.Config{PageSize: testPageSize, PageCount: 1}, flash)
	})
	assert.Panics(t, func() {
		eeprom.New(eeprom.Config{PageSize: 100, PageCount: 2}, flash)
	})
}

// Erase always returns the region to the canonical empty state.
func TestErase(t *testing.T) {
	im := newErasedImage(testPageSize, testPageCount)
	flash := im.toFlash()
	c := eeprom.New(testConfig(), flash)
	require.NoError(t, c.Init())
	require.NoError(t, c.Write(1, 0xDEAD))
	require.NoError(t, c.Write(2, 0xBEEF))

	require.NoError(t, c.Erase())

	got := flash.Image()
	assert.Equal(t, uint16(0xABCD), got[0])
	for i := 1; i < len(got); i++ {
		assert.Equalf(t, uint16(0xFFFF), got[i], "half-word %d", i)
	}
	_, ok, err := c.Read(1)
	require.NoError(t, err)
	assert.False(t, ok)
}
