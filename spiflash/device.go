package spiflash

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is an FT2232H USB-to-MPSSE bridge wired to a SPI NOR flash
// chip on ADBUS0-2 (SCK/MOSI/MISO) with chip-select on ADBUS4.
type Device struct {
	FTDI *ftdi.FT232H
	Chip *Chip

	cs gpio.PinIO // ADBUS4 Chip Select

	clock physic.Frequency
	conn  spi.Conn
}

var hostInitialized atomic.Bool

// OpenDevice finds an FT2232H device and opens an MPSSE/SPI connection
// to the flash chip wired to it, configured with an EEPROM region of
// pageSize bytes per page starting at baseAddr on the chip.
func OpenDevice(baseAddr, pageSize uint32) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	d := &Device{
		clock: 30 * physic.MegaHertz, // [AN_135 3.2.1 Divisors]
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	d.cs = d.FTDI.D4

	if err := d.connectSPI(); err != nil {
		return nil, err
	}

	d.Chip = NewChip(d.conn, d.cs, baseAddr, pageSize)

	return d, nil
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H device not found")
}

func (d *Device) connectSPI() (err error) {
	if d.FTDI == nil {
		return errors.New("FT2232H device not found")
	}

	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI AN_114|1.2] the FTDI MPSSE engine only supports mode 0 and
	// mode 2; [n25q_32mb_3v_65nm.pdf|Table 7] the chip supports modes
	// 0 and 3, so mode 0 is the common ground.
	mode := spi.Mode0
	d.conn, err = port.Connect(d.clock, mode, 8)
	return err
}
