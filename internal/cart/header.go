package cart

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// ShortType classifies a cart-type byte into the mapper family this port
// implements. Anything else is rejected at load time (spec 4.2/6/7),
// unlike the teacher's cart.go, which silently falls back to ROMOnly.
type ShortType int

const (
	ShortUnknown ShortType = iota
	ShortROMOnly
	ShortMBC1
	ShortMBC2
)

var supportedCartTypes = map[byte]ShortType{
	0x00: ShortROMOnly,
	0x08: ShortROMOnly, // ROM+RAM
	0x09: ShortROMOnly, // ROM+RAM+BATTERY
	0x01: ShortMBC1,
	0x02: ShortMBC1, // MBC1+RAM
	0x03: ShortMBC1, // MBC1+RAM+BATTERY
	0x05: ShortMBC2,
	0x06: ShortMBC2, // MBC2+BATTERY
}

var batteryBackedCartTypes = map[byte]bool{
	0x03: true,
	0x06: true,
	0x09: true,
}

type Header struct {
	Title          string // trimmed ASCII, 0x134-0x143
	CGBFlag        byte   // 0x0143
	NewLicensee    string // 0x0144-0x0145, if OldLicensee==0x33
	SGBFlag        byte   // 0x0146
	CartType       byte   // 0x0147
	ROMSizeCode    byte   // 0x0148
	RAMSizeCode    byte   // 0x0149
	Destination    byte   // 0x014A
	OldLicensee    byte   // 0x014B
	ROMVersion     byte   // 0x014C
	HeaderChecksum byte   // 0x014D
	GlobalChecksum uint16 // 0x014E-0x014F

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	RAMBanks     int
	Short        ShortType
}

func classify(cartType byte) (ShortType, bool) {
	st, ok := supportedCartTypes[cartType]
	return st, ok
}

// ParseHeader decodes the 0x100-0x14F cartridge header (spec 3.6, 6),
// refusing cart types and size codes outside the supported set as well as
// CGB-only cartridges.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, fmt.Errorf("cart: %w: rom is %d bytes, need at least %#x", ErrShortROM, len(rom), headerEnd+1)
	}

	rawTitle := rom[0x0134:0x0144]
	title := strings.TrimRight(string(rawTitle), "\x00")

	h := &Header{
		Title:          title,
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}

	short, ok := classify(h.CartType)
	if !ok {
		return nil, fmt.Errorf("cart: %w: type 0x%02X", ErrUnsupportedCartType, h.CartType)
	}
	h.Short = short

	// 0xC0 marks a CGB-only cartridge, which a DMG cannot run.
	if h.CGBFlag == 0xC0 {
		return nil, fmt.Errorf("cart: %w: CGB-only cartridge (0x0143=0xC0)", ErrBadHeader)
	}

	romSize, romBanks, ok := decodeROMSize(h.ROMSizeCode)
	if !ok {
		return nil, fmt.Errorf("cart: %w: rom size code 0x%02X", ErrBadHeader, h.ROMSizeCode)
	}
	h.ROMSizeBytes, h.ROMBanks = romSize, romBanks

	ramSize, ramBanks, ok := decodeRAMSize(h.RAMSizeCode)
	if !ok {
		return nil, fmt.Errorf("cart: %w: ram size code 0x%02X", ErrBadHeader, h.RAMSizeCode)
	}
	h.RAMSizeBytes, h.RAMBanks = ramSize, ramBanks

	// MBC2 has built-in 512x4-bit RAM; a RAM-size-code-0 header (the usual
	// case) is coerced to that fixed size, grounded on
	// original_source/src/cart.cpp.
	if h.Short == ShortMBC2 && h.RAMSizeBytes == 0 {
		h.RAMSizeBytes, h.RAMBanks = 512, 1
	}

	if h.Short == ShortROMOnly && h.ROMSizeBytes != 32*1024 {
		return nil, fmt.Errorf("cart: %w: rom-only cart must be exactly 32KiB, got %d", ErrBadHeader, h.ROMSizeBytes)
	}

	return h, nil
}

// HeaderChecksumOK runs the classic header checksum loop over 0x134-0x14C.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// LogoOK reports whether the boot logo bytes match the real Nintendo logo.
func LogoOK(rom []byte) bool {
	if len(rom) < 0x104+48 {
		return false
	}
	for i := 0; i < 48; i++ {
		if rom[0x104+i] != nintendoLogo[i] {
			return false
		}
	}
	return true
}

func decodeROMSize(code byte) (sizeBytes, banks int, ok bool) {
	switch code {
	case 0x00:
		return 32 * 1024, 2, true
	case 0x01:
		return 64 * 1024, 4, true
	case 0x02:
		return 128 * 1024, 8, true
	case 0x03:
		return 256 * 1024, 16, true
	case 0x04:
		return 512 * 1024, 32, true
	case 0x05:
		return 1024 * 1024, 64, true
	case 0x06:
		return 2 * 1024 * 1024, 128, true
	default:
		return 0, 0, false
	}
}

func decodeRAMSize(code byte) (sizeBytes, banks int, ok bool) {
	switch code {
	case 0x00:
		return 0, 0, true
	case 0x01:
		return 2 * 1024, 1, true
	case 0x02:
		return 8 * 1024, 1, true
	case 0x03:
		return 32 * 1024, 4, true
	default:
		return 0, 0, false
	}
}

// Battery reports whether this cart type persists RAM to a .sav file.
func (h *Header) Battery() bool {
	return batteryBackedCartTypes[h.CartType]
}

func (h *Header) String() string {
	return fmt.Sprintf("%q type=0x%02X rom=%dKiB(%d banks) ram=%dB(%d banks) battery=%v",
		h.Title, h.CartType, h.ROMSizeBytes/1024, h.ROMBanks, h.RAMSizeBytes, h.RAMBanks, h.Battery())
}
