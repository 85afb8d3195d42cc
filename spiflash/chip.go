// Package spiflash drives a SPI NOR flash chip over an FTDI FT2232H
// USB-to-MPSSE/SPI bridge and exposes a configured byte range of it
// directly as an eeprom.Flash collaborator. The low-level command set
// (page program, subsector erase, status-register busy-poll, JEDEC ID
// detection) is adapted from the gentam/gice FPGA programmer's flash
// driver, trimmed to what an EEPROM region actually needs and
// reshaped so the half-word/page framing eeprom.Controller expects is
// the chip's native API, not a wrapper bolted on top of a generic byte
// driver: bulk chip-erase, 64KB sector erase, and whole-image
// streaming writes — all needed to flash an FPGA bitstream, none of
// them needed to emulate a small EEPROM region — are dropped.
package spiflash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/gentam/eeprom"
)

// Chip is a SPI NOR flash chip (e.g. Micron N25Q or Winbond W25Q)
// carrying an EEPROM region of pageSize bytes per page, starting at
// baseAddr, addressed with a 24-bit byte offset on the chip.
type Chip struct {
	conn spi.Conn
	cs   gpio.PinIO
	id   [3]byte // JEDEC ID of the flash chip
	pr   *chipParams

	baseAddr uint32 // byte address on the chip where the EEPROM region starts
	pageSize uint32 // EEPROM page size in bytes, as configured in eeprom.Config
}

// NewChip wraps an already-connected SPI port and chip-select pin.
// baseAddr and pageSize should agree with the eeprom.Config passed to
// eeprom.New, and pageSize must be representable as whole 4KB erase
// subsectors (the chip's smallest erase granularity).
func NewChip(conn spi.Conn, cs gpio.PinIO, baseAddr, pageSize uint32) *Chip {
	return &Chip{conn: conn, cs: cs, baseAddr: baseAddr, pageSize: pageSize}
}

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	cmdPowerUp            = 0xAB // Release Power Down
	cmdPowerDown          = 0xB9
	cmdReadID             = 0x9F
	cmdRead               = 0x03
	cmdWriteEnable        = 0x06
	cmdPageProgram        = 0x02
	cmdErase4KB           = 0x20 // Subsector Erase / Sector Erase (4KB)
	cmdReadStatusRegister = 0x05
)

// tx wraps a SPI transaction with CS assertion.
func (c *Chip) tx(buf []byte) (err error) {
	if err = c.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := c.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = c.conn.Tx(buf, buf)
	return
}

func (c *Chip) PowerUp() error {
	if err := c.tx([]byte{cmdPowerUp}); err != nil {
		return err
	}
	time.Sleep(c.tRES1())
	return nil
}

func (c *Chip) PowerDown() error {
	if err := c.tx([]byte{cmdPowerDown}); err != nil {
		return err
	}
	time.Sleep(c.tDP())
	return nil
}

// ReadID returns the JEDEC ID of the flash chip and configures its
// timing parameters. It returns a non-empty name for known IDs.
func (c *Chip) ReadID() (id [3]byte, name string, err error) {
	buf := make([]byte, 4)
	buf[0] = cmdReadID

	if err = c.tx(buf); err != nil {
		return
	}

	c.id = [3]byte(buf[1:])
	if params, ok := knownChips[c.id]; ok {
		c.pr = &params
		name = params.name
	}
	return c.id, name, err
}

// readBytes reads n bytes starting at the chip's absolute byte
// address addr, splitting the read into multiple transactions if it
// would otherwise exceed the maximum transaction size.
func (c *Chip) readBytes(addr, n int) ([]byte, error) {
	const (
		maxTx    = 65536 // [FTDI-AN_108]
		cmdBytes = 4     // cmdRead + 24-bit address
		maxData  = maxTx - cmdBytes
	)

	out := make([]byte, n)
	off := 0
	for remaining := n; remaining > 0; {
		chunk := min(remaining, maxData)
		buf := make([]byte, cmdBytes+chunk)
		buf[0] = cmdRead
		buf[1] = byte(addr >> 16)
		buf[2] = byte(addr >> 8)
		buf[3] = byte(addr)
		// buf[4:] dummy bytes

		if err := c.tx(buf); err != nil {
			return nil, err
		}

		copy(out[off:], buf[cmdBytes:])

		addr += chunk
		off += chunk
		remaining -= chunk
	}
	return out, nil
}

func (c *Chip) writeEnable() error {
	return c.tx([]byte{cmdWriteEnable})
}

// programBytes writes up to 256 bytes at the chip's absolute byte
// address addr in a single page-program command.
func (c *Chip) programBytes(addr int, data []byte) error {
	if err := c.writeEnable(); err != nil {
		return err
	}

	const max24 = 1<<24 - 1 // 0xFFFFFF
	if addr < 0 || addr > max24 {
		return fmt.Errorf("address 0x%X out of 24-bit range", addr)
	}
	if len(data) > 256 {
		return errors.New("data must not exceed 256 bytes")
	}
	buf := make([]byte, 4+len(data))
	buf[0] = cmdPageProgram
	buf[1] = byte(addr >> 16)
	buf[2] = byte(addr >> 8)
	buf[3] = byte(addr)
	copy(buf[4:], data)

	if err := c.tx(buf); err != nil {
		return err
	}
	return c.BusyWait(100*time.Microsecond, c.tPP())
}

func (c *Chip) erase4KB(addr int) error {
	if err := c.writeEnable(); err != nil {
		return err
	}

	buf := make([]byte, 4)
	buf[0] = cmdErase4KB
	buf[1] = byte(addr >> 16)
	buf[2] = byte(addr >> 8)
	buf[3] = byte(addr)

	if err := c.tx(buf); err != nil {
		return err
	}
	return c.BusyWait(50*time.Millisecond, c.tErase4KB())
}

// BusyWait waits for the flash to become ready by polling the status
// register's busy bit at the given interval, until timeout expires.
// Timeout 0 means wait indefinitely.
func (c *Chip) BusyWait(interval, timeout time.Duration) error {
	if sr, err := c.ReadStatusRegister(); err == nil && !sr.Busy() {
		return nil
	}

	timer := time.NewTimer(timeout)
	if timeout == 0 {
		timer.Stop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return nil
		case <-ticker.C:
			sr, err := c.ReadStatusRegister()
			if err != nil {
				return err
			}
			if !sr.Busy() {
				return nil
			}
		}
	}
}

// StatusRegister represents the status register of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	var s []string
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.SectorProtect() {
		s = append(s, "SEC")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

func (c *Chip) ReadStatusRegister() (StatusRegister, error) {
	buf := []byte{cmdReadStatusRegister, 0}
	if err := c.tx(buf); err != nil {
		return 0, err
	}
	return StatusRegister(buf[1]), nil
}

// ReadHalfWord implements eeprom.Flash.
func (c *Chip) ReadHalfWord(offset uint32) (uint16, error) {
	buf, err := c.readBytes(int(c.baseAddr+offset), 2)
	if err != nil {
		return 0, fmt.Errorf("spiflash: read at offset %#x: %w", offset, err)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// WriteHalfWord implements eeprom.Flash. The chip's page-program
// command accepts any address and up to 256 bytes, so a 2-byte
// program is just a very small page program. The target half-word is
// not checked for being erased first, and the status register is only
// polled for the busy bit; any failure of the program sequence (write
// enable, SPI transfer, status read) is reported as
// eeprom.ErrProgrammingError.
func (c *Chip) WriteHalfWord(offset uint32, data uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], data)
	if err := c.programBytes(int(c.baseAddr+offset), buf[:]); err != nil {
		return fmt.Errorf("spiflash: program at offset %#x: %w", offset, eeprom.ErrProgrammingError)
	}
	return nil
}

// ErasePage implements eeprom.Flash. It erases pageSize bytes of the
// chip starting at pageBaseOffset, as a run of 4KB subsector erases —
// the chip's smallest granularity, and the only one an EEPROM page
// (a few KB at most) ever needs.
func (c *Chip) ErasePage(pageBaseOffset uint32) error {
	const subsectorSize = 4 << 10
	if c.pageSize%subsectorSize != 0 {
		return fmt.Errorf("spiflash: page size %d is not a multiple of the %dB erase granularity", c.pageSize, subsectorSize)
	}
	addr := int(c.baseAddr + pageBaseOffset)
	for remaining := int(c.pageSize); remaining > 0; remaining -= subsectorSize {
		if err := c.erase4KB(addr); err != nil {
			return fmt.Errorf("spiflash: erase page at offset %#x: %w", pageBaseOffset, err)
		}
		addr += subsectorSize
	}
	return nil
}

// Unlock implements eeprom.Unlocker. This chip has no unlock key pair
// the way an MCU's internal program/erase controller does: its
// write-enable latch is asserted by writeEnable before every program/
// erase command and auto-clears afterward, so there is nothing
// additional to hold open across a scoped section. Unlock is a no-op
// purely to document that the EEPROM controller's single-writer
// discipline is the only thing actually serializing access here.
func (c *Chip) Unlock() (release func() error, err error) {
	return func() error { return nil }, nil
}

// ReadRegion reads the whole EEPROM region (pageCount pages of
// pageSize bytes each, starting at baseAddr) back as raw bytes, for
// diagnostics that fall outside the eeprom.Flash contract.
func (c *Chip) ReadRegion(pageCount uint32) ([]byte, error) {
	return c.readBytes(int(c.baseAddr), int(c.pageSize*pageCount))
}
