// Package bus implements the DMG unified memory map, routing each CPU
// address to cartridge, WRAM, VRAM/OAM, HRAM or the mapped I/O registers of
// the PPU/APU/timer/joypad/interrupt subsystems (spec 3.1, 4.1).
package bus

import (
	"bytes"
	"encoding/gob"

	"github.com/rvangent/gbx/internal/apu"
	"github.com/rvangent/gbx/internal/cart"
	"github.com/rvangent/gbx/internal/interrupt"
	"github.com/rvangent/gbx/internal/joypad"
	"github.com/rvangent/gbx/internal/ppu"
	"github.com/rvangent/gbx/internal/timer"
)

// SerialWriter receives bytes shifted out over the (unconnected) serial
// port; plugging one in is optional and purely observational.
type SerialWriter interface {
	Write(p []byte) (int, error)
}

type Bus struct {
	Cart cart.Cartridge
	PPU  *ppu.PPU
	APU  *apu.APU
	Tmr  *timer.Timer
	Pad  *joypad.Joypad
	IRQ  *interrupt.Controller

	wram [0x2000]byte // 0xC000-0xDFFF, mirrored at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	sb byte // FF01
	sc byte // FF02
	serialOut SerialWriter

	dmaSrcHigh byte
}

// New wires a fully-formed Bus. All subsystem pointers must be non-nil; the
// emu package owns construction order. The PPU's own interrupt callback is
// wired by its constructor; here we additionally wire the timer and joypad
// interrupt sources onto the shared controller.
func New(c cart.Cartridge, p *ppu.PPU, a *apu.APU, t *timer.Timer, j *joypad.Joypad, irq *interrupt.Controller) *Bus {
	t.RequestInterrupt = func() { irq.Request(interrupt.Timer) }
	j.RequestInterrupt = func() { irq.Request(interrupt.Joypad) }
	return &Bus{Cart: c, PPU: p, APU: a, Tmr: t, Pad: j, IRQ: irq}
}

// SetSerialWriter attaches an observer for bytes shifted out over SC/SB;
// there is no serial-link cable to connect to (spec Non-goals), so this is
// purely for tooling (e.g. test ROMs that print over serial).
func (b *Bus) SetSerialWriter(w SerialWriter) { b.serialOut = w }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000, addr >= 0xA000 && addr <= 0xBFFF:
		return b.Cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.PPU.CPURead(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0xE000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return b.PPU.CPURead(addr)
	case addr == 0xFF00:
		return b.Pad.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | b.sc
	case addr == 0xFF04:
		return b.Tmr.DIV()
	case addr == 0xFF05:
		return b.Tmr.TIMA()
	case addr == 0xFF06:
		return b.Tmr.TMA()
	case addr == 0xFF07:
		return b.Tmr.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.IRQ.IF & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.APU.CPURead(addr)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.PPU.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.IRQ.IE
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000, addr >= 0xA000 && addr <= 0xBFFF:
		b.Cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.PPU.CPUWrite(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0xE000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		b.PPU.CPUWrite(addr, value)
	case addr == 0xFF00:
		b.Pad.Write(value)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.writeSC(value)
	case addr == 0xFF04:
		b.Tmr.WriteDIV()
	case addr == 0xFF05:
		b.Tmr.WriteTIMA(value)
	case addr == 0xFF06:
		b.Tmr.WriteTMA(value)
	case addr == 0xFF07:
		b.Tmr.WriteTAC(value)
	case addr == 0xFF0F:
		b.IRQ.IF = value & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.APU.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.startDMA(value)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.PPU.CPUWrite(addr, value)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.IRQ.IE = value
	}
}

// writeSC starts (and, since no link cable is attached, immediately
// completes) a serial transfer: SB is left as it is, and the transfer
// finishes at once and raises the Serial interrupt (spec 2, Non-goals).
func (b *Bus) writeSC(value byte) {
	b.sc = value & 0x7F
	if value&0x80 == 0 {
		return
	}
	if b.serialOut != nil {
		_, _ = b.serialOut.Write([]byte{b.sb})
	}
	b.IRQ.Request(interrupt.Serial)
}

const dmaBytes = 160

// startDMA performs the OAM DMA block copy triggered by a write to FF46: all
// 160 bytes from value<<8 land in OAM within this single write, completing
// inside the one emulator step that issued it (spec 4.1, 8) rather than
// draining over many run-loop steps.
func (b *Bus) startDMA(high byte) {
	b.dmaSrcHigh = high
	for i := 0; i < dmaBytes; i++ {
		src := uint16(high)<<8 | uint16(i)
		b.PPU.DMAWrite(byte(i), b.readForDMA(src))
	}
}

// readForDMA reads a DMA source byte straight from backing memory: VRAM
// comes through PPU.RawVRAM, so the PPU's mode-3 VRAM lock does not apply.
func (b *Bus) readForDMA(addr uint16) byte {
	switch {
	case addr < 0x8000, addr >= 0xA000 && addr <= 0xBFFF:
		return b.Cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.PPU.RawVRAM(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0xE000]
	default:
		return 0xFF
	}
}

type statefulSubsystem interface {
	SaveState() []byte
	LoadState([]byte)
}

type busState struct {
	WRAM               [0x2000]byte
	HRAM               [0x7F]byte
	SB, SC             byte
	DMASrcHigh         byte
	PPU, APU, Tmr, Pad []byte
	Cart               []byte
}

// SaveState snapshots the Bus and every subsystem it owns except the
// cartridge's own banking/RAM state, which is only captured when the
// mapper implements SaveState/LoadState (all shipped mappers do).
func (b *Bus) SaveState() []byte {
	s := busState{
		WRAM: b.wram, HRAM: b.hram, SB: b.sb, SC: b.sc,
		DMASrcHigh: b.dmaSrcHigh,
		PPU:        b.PPU.SaveState(), APU: b.APU.SaveState(), Tmr: b.Tmr.SaveState(), Pad: b.Pad.SaveState(),
	}
	if c, ok := b.Cart.(statefulSubsystem); ok {
		s.Cart = c.SaveState()
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	var s busState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.hram, b.sb, b.sc = s.WRAM, s.HRAM, s.SB, s.SC
	b.dmaSrcHigh = s.DMASrcHigh
	b.PPU.LoadState(s.PPU)
	b.APU.LoadState(s.APU)
	b.Tmr.LoadState(s.Tmr)
	b.Pad.LoadState(s.Pad)
	if c, ok := b.Cart.(statefulSubsystem); ok && len(s.Cart) > 0 {
		c.LoadState(s.Cart)
	}
}
