package spiflash

import "time"

// chipParams carries only the timings ErasePage/WriteHalfWord/PowerUp/
// PowerDown actually wait on; 64KB-sector and whole-chip erase timings
// have no caller once the EEPROM region is always erased in 4KB
// subsectors, so they are not carried here.
type chipParams struct {
	name string

	tRES1     time.Duration
	tDP       time.Duration
	tPP       time.Duration
	tErase4KB time.Duration
}

var (
	jedecMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	jedecWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
)

var knownChips = map[[3]byte]chipParams{
	jedecMicronN25Q32: {
		name: "Micron N25Q 32Mb",

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		tPP:       5 * time.Millisecond,   // PAGE PROGRAM cycle time (256 bytes)
		tErase4KB: 800 * time.Millisecond, // Subsector ERASE cycle time
	},

	jedecWinbondW25Q128: {
		name: "Winbond W25Q 128Mb",

		// [W25Q128|9.6 AC Electrical Characteristics]
		tRES1:     3 * time.Microsecond,   // /CS High to Standby Mode without ID Read
		tDP:       3 * time.Microsecond,   // /CS High to Power-down Mode
		tPP:       3 * time.Millisecond,   // Page Program Time
		tErase4KB: 400 * time.Millisecond, // Sector Erase Time (4KB)
	},
}

func (c *Chip) paramOrMax(get func(*chipParams) time.Duration) time.Duration {
	if c.pr != nil {
		return get(c.pr)
	}

	var tmax time.Duration
	for _, param := range knownChips {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (c *Chip) tRES1() time.Duration {
	return c.paramOrMax(func(p *chipParams) time.Duration { return p.tRES1 })
}
func (c *Chip) tDP() time.Duration {
	return c.paramOrMax(func(p *chipParams) time.Duration { return p.tDP })
}
func (c *Chip) tPP() time.Duration {
	return c.paramOrMax(func(p *chipParams) time.Duration { return p.tPP })
}
func (c *Chip) tErase4KB() time.Duration {
	return c.paramOrMax(func(p *chipParams) time.Duration { return p.tErase4KB })
}
