package eeprom_test

import (
	"github.com/gentam/eeprom"
	"github.com/gentam/eeprom/memflash"
)

const (
	testPageSize  = 1024
	testPageCount = 2
)

func testConfig() eeprom.Config {
	return eeprom.Config{FirstPage: 0, PageSize: testPageSize, PageCount: testPageCount}
}

func slotsPerPage() int { return testPageSize / 4 }

// image is a little-endian half-word builder matching the on-Flash
// layout: page p, slot s occupies half-words [p*slotsPerPage*2 + s*2,
// ...+1] = [tag, data].
type image struct {
	pageSize  uint32
	pageCount uint32
	halfWords []uint16
}

func newErasedImage(pageSize, pageCount uint32) *image {
	hw := make([]uint16, pageSize*pageCount/2)
	for i := range hw {
		hw[i] = 0xFFFF
	}
	return &image{pageSize: pageSize, pageCount: pageCount, halfWords: hw}
}

func (im *image) slotsPerPage() uint32 { return im.pageSize / 4 }

func (im *image) setMarker(page uint32, marker uint16) {
	im.halfWords[page*im.slotsPerPage()*2] = marker
}

func (im *image) setSlot(page, slot uint32, tag, data uint16) {
	base := page*im.slotsPerPage()*2 + slot*2
	im.halfWords[base] = tag
	im.halfWords[base+1] = data
}

func (im *image) zeroFill() {
	for i := range im.halfWords {
		im.halfWords[i] = 0
	}
}

func (im *image) toFlash() *memflash.Flash {
	return memflash.NewFromImage(im.halfWords, im.pageSize)
}
