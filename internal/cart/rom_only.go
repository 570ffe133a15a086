package cart

import (
	"bytes"
	"encoding/gob"
)

// ROMOnly implements a fixed 32KiB cartridge with no MBC, and optionally a
// small unbanked external RAM (cart types 0x08/0x09).
type ROMOnly struct {
	rom []byte
	ram []byte
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom}
}

// NewROMOnlyWithRAM builds a ROMOnly cartridge with ramSize bytes of
// unbanked external RAM.
func NewROMOnlyWithRAM(rom []byte, ramSize int) *ROMOnly {
	c := &ROMOnly{rom: rom}
	if ramSize > 0 {
		c.ram = make([]byte, ramSize)
	}
	return c
}

func (c *ROMOnly) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			return c.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (c *ROMOnly) Write(addr uint16, value byte) {
	if addr >= 0xA000 && addr <= 0xBFFF {
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			c.ram[off] = value
		}
	}
	// Writes to 0x0000-0x7FFF are MBC control on real hardware; ROM-only
	// carts have none, so they are silently discarded (spec 4.1, 7).
}

func (c *ROMOnly) SaveRAM() []byte {
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}

func (c *ROMOnly) LoadRAM(data []byte) {
	n := copy(c.ram, data)
	for i := n; i < len(c.ram); i++ {
		c.ram[i] = 0
	}
}

func (c *ROMOnly) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(append([]byte(nil), c.ram...))
	return buf.Bytes()
}

func (c *ROMOnly) LoadState(data []byte) {
	var ram []byte
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ram); err != nil {
		return
	}
	copy(c.ram, ram)
}
