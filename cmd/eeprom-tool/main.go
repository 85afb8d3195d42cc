// Command eeprom-tool is a small diagnostic CLI for the EEPROM
// controller, built the way the teacher's own cmd/main.go was built:
// flag for argument parsing, no framework. It drives either real SPI
// NOR flash hardware (an FT2232H bridge, auto-discovered) or an
// in-memory simulator, optionally persisted to a file between runs.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gentam/eeprom"
	"github.com/gentam/eeprom/memflash"
	"github.com/gentam/eeprom/spiflash"
)

func main() {
	var (
		firstPage uint
		pageSize  uint
		pageCount uint
		baseAddr  uint
		simFile   string
		forceSim  bool
		readArg   string
		writeArg  string
		dump      bool
		erase     bool
	)

	flag.UintVar(&firstPage, "first-page", 0, "index of the first EEPROM page")
	flag.UintVar(&pageSize, "page-size", 4096, "EEPROM page size in bytes (multiple of 1KiB)")
	flag.UintVar(&pageCount, "page-count", 2, "number of EEPROM pages")
	flag.UintVar(&baseAddr, "base-addr", 0, "byte address on the flash chip where the EEPROM region starts (hardware mode only)")
	flag.StringVar(&simFile, "sim-file", "", "path to a raw image file backing the in-memory simulator (persists across runs)")
	flag.BoolVar(&forceSim, "sim", false, "use the in-memory simulator even if hardware is present")
	flag.StringVar(&readArg, "read", "", "tag to read, e.g. 0x1")
	flag.StringVar(&writeArg, "write", "", "tag=value to write, e.g. 0x1=0xdead")
	flag.BoolVar(&dump, "dump", false, "hex-dump the raw EEPROM region after the requested operation")
	flag.BoolVar(&erase, "erase", false, "erase the EEPROM region before any other operation")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := eeprom.Config{
		FirstPage: uint32(firstPage),
		PageSize:  uint32(pageSize),
		PageCount: uint32(pageCount),
	}

	flash, persist, err := openFlash(logger, cfg, forceSim, simFile, uint32(baseAddr))
	if err != nil {
		logger.Error("open flash", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := persist(); err != nil {
			logger.Error("persist image", "err", err)
		}
	}()

	c := eeprom.New(cfg, flash)
	if err := c.Init(); err != nil {
		logger.Error("init", "err", err)
		os.Exit(1)
	}

	if erase {
		if err := c.Erase(); err != nil {
			logger.Error("erase", "err", err)
			os.Exit(1)
		}
	}

	if writeArg != "" {
		tag, value, err := parseWrite(writeArg)
		if err != nil {
			logger.Error("parse -write", "err", err)
			os.Exit(1)
		}
		if err := c.Write(tag, value); err != nil {
			logger.Error("write", "err", err)
			os.Exit(1)
		}
	}

	if readArg != "" {
		tag, err := parseTag(readArg)
		if err != nil {
			logger.Error("parse -read", "err", err)
			os.Exit(1)
		}
		v, ok, err := c.Read(tag)
		if err != nil {
			logger.Error("read", "err", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("not present")
		} else {
			fmt.Printf("%#04x\n", v)
		}
	}

	if dump {
		data, err := regionBytes(flash, cfg)
		if err != nil {
			logger.Error("dump", "err", err)
			os.Exit(1)
		}
		fmt.Print(hex.Dump(data))
	}
}

func parseTag(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid tag %q: %w", s, err)
	}
	return uint16(n), nil
}

func parseWrite(s string) (tag, value uint16, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected tag=value, got %q", s)
	}
	t, err := parseTag(parts[0])
	if err != nil {
		return 0, 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value %q: %w", parts[1], err)
	}
	return t, uint16(v), nil
}

// openFlash picks a Flash collaborator: real SPI NOR hardware if
// found (and not overridden by -sim), otherwise the in-memory
// simulator, optionally seeded from and persisted back to simFile.
// The returned persist func must be called once on exit.
func openFlash(logger *slog.Logger, cfg eeprom.Config, forceSim bool, simFile string, baseAddr uint32) (eeprom.Flash, func() error, error) {
	totalBytes := cfg.PageSize * cfg.PageCount

	if !forceSim {
		dev, err := spiflash.OpenDevice(baseAddr, cfg.PageSize)
		if err == nil {
			id, name, err := dev.Chip.ReadID()
			if err != nil {
				return nil, nil, fmt.Errorf("read JEDEC ID: %w", err)
			}
			if name == "" {
				logger.Warn("unknown JEDEC ID, using conservative timings", "id", fmt.Sprintf("%X", id))
			} else {
				logger.Info("found flash chip", "name", name)
			}
			if err := dev.Chip.PowerUp(); err != nil {
				return nil, nil, fmt.Errorf("power up flash chip: %w", err)
			}
			return dev.Chip, dev.Chip.PowerDown, nil
		}
		logger.Info("no hardware found, falling back to simulator", "err", err)
	}

	var image []uint16
	if simFile != "" {
		if raw, err := os.ReadFile(simFile); err == nil {
			image = bytesToHalfWords(raw)
		}
	}

	var flash *memflash.Flash
	if len(image) == int(totalBytes/2) {
		flash = memflash.NewFromImage(image, cfg.PageSize)
	} else {
		flash = memflash.New(totalBytes, cfg.PageSize)
	}

	persist := func() error { return nil }
	if simFile != "" {
		persist = func() error {
			return os.WriteFile(simFile, halfWordsToBytes(flash.Image()), 0o644)
		}
	}
	return flash, persist, nil
}

// regionBytes reads the whole EEPROM region back as raw bytes, for
// -dump.
func regionBytes(flash eeprom.Flash, cfg eeprom.Config) ([]byte, error) {
	totalBytes := cfg.PageSize * cfg.PageCount
	if c, ok := flash.(*spiflash.Chip); ok {
		return c.ReadRegion(cfg.PageCount)
	}
	out := make([]byte, totalBytes)
	for off := uint32(0); off < totalBytes; off += 2 {
		hw, err := flash.ReadHalfWord(off)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint16(out[off:], hw)
	}
	return out, nil
}

func bytesToHalfWords(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return out
}

func halfWordsToBytes(hw []uint16) []byte {
	out := make([]byte, len(hw)*2)
	for i, w := range hw {
		binary.LittleEndian.PutUint16(out[i*2:], w)
	}
	return out
}
