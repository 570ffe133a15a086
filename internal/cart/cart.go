// Package cart implements cartridge header parsing and the RomOnly, MBC1
// and MBC2 memory bank controllers (spec 4.2).
package cart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrShortROM            = errors.New("rom too small to contain a header")
	ErrBadHeader           = errors.New("malformed cartridge header")
	ErrUnsupportedCartType = errors.New("unsupported cartridge type")
)

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
// Addresses are CPU addresses.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// BatteryBacked cartridges persist external RAM across sessions.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// Load parses the header and constructs the matching mapper, strictly
// refusing unsupported cart types (spec 4.2, 7) - unlike the teacher's
// permissive ROMOnly fallback.
func Load(rom []byte) (Cartridge, *Header, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, nil, err
	}

	var c Cartridge
	switch h.Short {
	case ShortROMOnly:
		c = NewROMOnlyWithRAM(rom, h.RAMSizeBytes)
	case ShortMBC1:
		c = NewMBC1(rom, h.RAMSizeBytes)
	case ShortMBC2:
		c = NewMBC2(rom)
	default:
		return nil, nil, fmt.Errorf("cart: %w: type 0x%02X", ErrUnsupportedCartType, h.CartType)
	}
	return c, h, nil
}

// SavePath derives the sibling .sav path for a ROM file path, grounded on
// original_source/src/cart.cpp's eval_sav_file_path (replace the
// extension with .sav).
func SavePath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

// LoadSaveFile loads a sibling .sav file into a battery-backed cartridge.
// A missing file is not an error (spec 6); a present-but-short file
// zero-extends.
func LoadSaveFile(c Cartridge, romPath string) error {
	bb, ok := c.(BatteryBacked)
	if !ok {
		return nil
	}
	data, err := os.ReadFile(SavePath(romPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	bb.LoadRAM(data)
	return nil
}

// WriteSaveFile persists a battery-backed cartridge's RAM. Errors are the
// caller's to report; they must never be fatal (spec 7).
func WriteSaveFile(c Cartridge, romPath string) error {
	bb, ok := c.(BatteryBacked)
	if !ok {
		return nil
	}
	data := bb.SaveRAM()
	if len(data) == 0 {
		return nil
	}
	return os.WriteFile(SavePath(romPath), data, 0o644)
}
