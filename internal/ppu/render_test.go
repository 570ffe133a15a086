package ppu

import "testing"

func TestRenderScanline_BGColorFromPalette(t *testing.T) {
	p := New(nil)
	p.CPUWrite(0xFF47, 0x1B) // BGP: idx0->black idx1->darkgrey idx2->lightgrey idx3->white
	// Tile 0 at map (0x9800,0): all-opaque solid color index 3 row.
	p.CPUWrite(0xFF40, 0x91) // LCD on, BG on, 0x8000 tile data
	p.vram[0x1800] = 0x00    // map entry -> tile 0
	p.vram[0x0000] = 0xFF    // tile0 row0 lo
	p.vram[0x0001] = 0xFF    // tile0 row0 hi -> color idx 3 across the row

	p.Tick(80) // enter mode 3, capture line regs for LY=0
	p.renderScanline(0)

	fb := p.Framebuffer()
	r, g, b, a := fb[0], fb[1], fb[2], fb[3]
	if r != 0xFF || g != 0xFF || b != 0xFF || a != 0xFF {
		t.Fatalf("color idx 3 through BGP=0x1B should be white, got %02x %02x %02x %02x", r, g, b, a)
	}
}

func TestRenderScanline_ProducedOnHBlankToNextTransition(t *testing.T) {
	p := New(nil)
	p.CPUWrite(0xFF40, 0x80) // LCD on, BG off -> white row
	p.Tick(456)              // full first line
	fb := p.Framebuffer()
	if fb[3] != 0xFF {
		t.Fatalf("expected framebuffer alpha channel populated after first line renders")
	}
	if fb[0] != 0xFF || fb[1] != 0xFF || fb[2] != 0xFF {
		t.Fatalf("expected white pixel with BG disabled, got %02x %02x %02x", fb[0], fb[1], fb[2])
	}
}
