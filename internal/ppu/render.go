package ppu

import "sort"

// Sprite is an OAM entry already converted to screen coordinates
// (x = oamX-8, y = oamY-16, per spec 4.4) plus its OAM slot index, needed
// to break ties between sprites that share the same X.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

const (
	attrPriority = 1 << 7
	attrYFlip    = 1 << 6
	attrXFlip    = 1 << 5
	attrPalette  = 1 << 4
)

// scanSprites collects every OAM entry visible on scanline ly, in OAM order,
// capped at the hardware's 10-sprites-per-line limit (spec 4.4).
func (p *PPU) scanSprites(ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		oamY := p.oam[base]
		oamX := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]
		screenY := int(oamY) - 16
		screenX := int(oamX) - 8
		row := int(ly) - screenY
		if row < 0 || row >= height {
			continue
		}
		out = append(out, Sprite{X: screenX, Y: screenY, Tile: tile, Attr: attr, OAMIndex: i})
	}
	return out
}

func spriteRowBytes(mem VRAMReader, tile byte, row int) (lo, hi byte) {
	base := uint16(0x8000) + uint16(tile)*16 + uint16(row)*2
	return mem.Read(base), mem.Read(base + 1)
}

// ComposeSpriteLineExt overlays sprites onto a scanline, honoring OBJ-OBJ
// priority (lower X wins, ties broken by lower OAM index) and OBJ-BG
// priority (bit7 of Attr hides the sprite pixel behind a non-white BG
// pixel). bgci is the already-rendered BG+window color-index row. It
// returns the sprite color indices (0 = no sprite pixel here) and which
// OBP register each belongs to (0 or 1).
func ComposeSpriteLineExt(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) (ci [160]byte, pal [160]byte) {
	height := 8
	if tall {
		height = 16
	}
	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	var claimed [160]bool
	for _, s := range ordered {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&attrYFlip != 0 {
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 1
			if row >= 8 {
				tile++
				row -= 8
			}
		}
		lo, hi := spriteRowBytes(mem, tile, row)
		for col := 0; col < 8; col++ {
			x := s.X + col
			if x < 0 || x >= 160 || claimed[x] {
				continue
			}
			bit := byte(7 - col)
			if s.Attr&attrXFlip != 0 {
				bit = byte(col)
			}
			idx := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if idx == 0 {
				continue
			}
			if s.Attr&attrPriority != 0 && bgci[x] != 0 {
				continue
			}
			ci[x] = idx
			if s.Attr&attrPalette != 0 {
				pal[x] = 1
			}
			claimed[x] = true
		}
	}
	return
}

// ComposeSpriteLine is ComposeSpriteLineExt without the per-pixel palette
// selection, for callers that only need the color indices.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	ci, _ := ComposeSpriteLineExt(mem, sprites, ly, bgci, tall)
	return ci
}

// RenderWindowScanlineUsingFetcher renders window pixels from winXStart to
// the right edge of the screen; pixels left of winXStart are left at 0
// (the caller composites BG pixels there instead).
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, winXStart int, fineY byte) [160]byte {
	var out [160]byte
	if winXStart < 0 {
		winXStart = 0
	}
	if winXStart >= 160 {
		return out
	}

	var tileX uint16
	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, mapBase+tileX, fineY)
	f.Fetch()

	for x := winXStart; x < 160; x++ {
		if q.Len() == 0 {
			tileX++
			f.Configure(mapBase, tileData8000, mapBase+tileX, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// renderScanline composes BG, window and sprites for line ly into the
// framebuffer, using the registers as they stood during that line's
// Transfer mode (spec 4.4, 4.9: rendering happens once, at the
// HBlank-to-next-line boundary, never pixel-by-pixel mid-scanline).
func (p *PPU) renderScanline(ly byte) {
	lr := p.LineRegs(int(ly))

	var bgci [160]byte
	if lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = renderBGScanlineUsingFetcher(p, mapBase, tileData8000, lr.SCX, lr.SCY, ly)
	}

	windowVisible := lr.LCDC&0x20 != 0 && lr.LCDC&0x01 != 0 && ly >= lr.WY && lr.WX <= 166
	if windowVisible {
		winMapBase := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			winMapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		winXStart := int(lr.WX) - 7
		winRowBase := winMapBase + uint16(lr.WinLine>>3)*32
		win := RenderWindowScanlineUsingFetcher(p, winRowBase, tileData8000, winXStart, lr.WinLine&7)
		for x := winXStart; x < 160; x++ {
			if x < 0 {
				continue
			}
			bgci[x] = win[x]
		}
	}

	var spriteCI, spritePal [160]byte
	if lr.LCDC&0x02 != 0 {
		tall := lr.LCDC&0x04 != 0
		sprites := p.scanSprites(ly, tall)
		spriteCI, spritePal = ComposeSpriteLineExt(p, sprites, ly, bgci, tall)
	}

	rowOff := int(ly) * 160 * 4
	for x := 0; x < 160; x++ {
		var r, g, b byte
		if spriteCI[x] != 0 {
			palette := lr.OBP0
			if spritePal[x] != 0 {
				palette = lr.OBP1
			}
			r, g, b = dmgShade(palette, spriteCI[x])
		} else {
			r, g, b = dmgShade(lr.BGP, bgci[x])
		}
		off := rowOff + x*4
		p.fb[off], p.fb[off+1], p.fb[off+2], p.fb[off+3] = r, g, b, 0xFF
	}
}
