package eeprom

import "fmt"

// Config describes the placement and geometry of the Flash region used
// for EEPROM emulation. All fields are validated at New time; an
// invalid Config is a programmer error and panics, not a recoverable
// failure (the linker placement and geometry are fixed for a given
// firmware build, not runtime input).
type Config struct {
	// FirstPage is the index of the first Flash page assigned to
	// EEPROM. The byte offset handed to Flash is computed from this
	// index and PageSize by the controller's address arithmetic.
	FirstPage uint32

	// PageSize is the Flash page size in bytes. Must be a multiple of
	// 1 KiB and must match the Flash hardware's page size.
	PageSize uint32

	// PageCount is the number of Flash pages dedicated to EEPROM.
	// Must be at least 2 (one active page, one rotation target).
	PageCount uint32
}

const minPageSize = 1024

func (c Config) validate() {
	if c.PageCount < 2 {
		panic(fmt.Sprintf("eeprom: page count must be >= 2, got %d", c.PageCount))
	}
	if c.PageSize == 0 || c.PageSize%minPageSize != 0 {
		panic(fmt.Sprintf("eeprom: page size must be a non-zero multiple of %d bytes, got %d", minPageSize, c.PageSize))
	}
}

func (c Config) slotsPerPage() uint32 {
	const slotSize = 4 // one tag half-word + one data half-word
	return c.PageSize / slotSize
}
