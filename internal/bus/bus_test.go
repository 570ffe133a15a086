package bus

import (
	"testing"

	"github.com/rvangent/gbx/internal/apu"
	"github.com/rvangent/gbx/internal/cart"
	"github.com/rvangent/gbx/internal/interrupt"
	"github.com/rvangent/gbx/internal/joypad"
	"github.com/rvangent/gbx/internal/ppu"
	"github.com/rvangent/gbx/internal/timer"
)

// newTestBus wires a Bus the way the run loop does: the PPU's interrupt
// callback routes bit 0/1 to VBlank/LCDStat on the shared controller.
func newTestBus(rom []byte) (*Bus, *interrupt.Controller) {
	irq := interrupt.New()
	p := ppu.New(func(bit int) {
		if bit == 0 {
			irq.Request(interrupt.VBlank)
		} else {
			irq.Request(interrupt.LCDStat)
		}
	})
	return New(cart.NewROMOnly(rom), p, apu.New(0), timer.New(), joypad.New(), irq), irq
}

func TestBus_ROMAndRAM(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0x42
	b, _ := newTestBus(rom)

	if got := b.Read(0x0100); got != 0x42 {
		t.Fatalf("ROM read got %02x, want 42", got)
	}

	b.Write(0xC000, 0x99)
	if got := b.Read(0xC000); got != 0x99 {
		t.Fatalf("RAM read got %02x, want 99", got)
	}

	b.Write(0xE000, 0x55)
	if got := b.Read(0xC000); got != 0x55 {
		t.Fatalf("echo write did not mirror to WRAM: got %02x", got)
	}

	b.Write(0xFF80, 0xAB)
	if got := b.Read(0xFF80); got != 0xAB {
		t.Fatalf("HRAM read got %02x, want AB", got)
	}

	if got := b.Read(0xA123); got != 0xFF {
		t.Fatalf("ext RAM (ROM-only) got %02x, want FF", got)
	}
}

func TestBus_VRAM_OAM_Passthrough(t *testing.T) {
	b, _ := newTestBus(make([]byte, 0x8000))

	b.Write(0x8000, 0x11)
	if got := b.Read(0x8000); got != 0x11 {
		t.Fatalf("VRAM read got %02x, want 11", got)
	}

	b.Write(0xFE00, 0x22)
	if got := b.Read(0xFE00); got != 0x22 {
		t.Fatalf("OAM read got %02x, want 22", got)
	}
}

func TestBus_IE_IF_Masking(t *testing.T) {
	b, irq := newTestBus(make([]byte, 0x8000))

	b.Write(0xFFFF, 0x1F)
	if got := b.Read(0xFFFF); got != 0x1F {
		t.Fatalf("IE readback got %02x, want 1F", got)
	}

	b.Write(0xFF0F, 0xFF)
	if got := b.Read(0xFF0F); got != 0xFF {
		t.Fatalf("IF readback got %02x, want FF (upper bits read as set)", got)
	}
	if irq.IF != 0x1F {
		t.Fatalf("IF should latch only the low 5 bits, got %02x", irq.IF)
	}
}

func TestBus_TimerRegisterPassthrough(t *testing.T) {
	b, _ := newTestBus(make([]byte, 0x8000))

	b.Write(0xFF06, 0x77)
	if got := b.Read(0xFF06); got != 0x77 {
		t.Fatalf("TMA readback got %02x, want 77", got)
	}

	b.Write(0xFF07, 0x05)
	if got := b.Read(0xFF07); got != 0xFD {
		t.Fatalf("TAC readback got %02x, want FD (upper 5 bits read as set)", got)
	}

	b.Write(0xFF04, 0x00) // any write resets DIV
	if got := b.Read(0xFF04); got != 0x00 {
		t.Fatalf("DIV after reset got %02x, want 00", got)
	}
}

func TestBus_JoypadRoutedToPad(t *testing.T) {
	b, _ := newTestBus(make([]byte, 0x8000))

	b.Write(0xFF00, 0x10) // select button keys
	got := b.Read(0xFF00)
	if got&0xF0 != 0xD0 {
		t.Fatalf("joypad select bits got %02x, want upper nibble D", got)
	}
}

func TestBus_SerialImmediateTransferRequestsInterrupt(t *testing.T) {
	b, irq := newTestBus(make([]byte, 0x8000))

	b.Write(0xFF01, 0x42)
	b.Write(0xFF02, 0x81) // start transfer, internal clock

	if b.Read(0xFF01) != 0x42 {
		t.Fatalf("SB should be left unchanged with no link cable attached")
	}
	if irq.IF&interrupt.Serial == 0 {
		t.Fatalf("expected Serial interrupt requested on immediate transfer completion")
	}
	if b.Read(0xFF02)&0x80 != 0 {
		t.Fatalf("SC transfer-start bit should read back cleared once complete")
	}
}

type captureWriter struct{ got []byte }

func (c *captureWriter) Write(p []byte) (int, error) {
	c.got = append(c.got, p...)
	return len(p), nil
}

func TestBus_SerialWriterObserver(t *testing.T) {
	b, _ := newTestBus(make([]byte, 0x8000))
	w := &captureWriter{}
	b.SetSerialWriter(w)

	b.Write(0xFF01, 'A')
	b.Write(0xFF02, 0x81)

	if len(w.got) != 1 || w.got[0] != 'A' {
		t.Fatalf("expected observer to see the shifted byte, got %v", w.got)
	}
}

func TestBus_OAM_DMA_CopiesFromSourceInOneWrite(t *testing.T) {
	rom := make([]byte, 0x8000)
	b, _ := newTestBus(rom)

	// Source data lives in WRAM at 0xC000; DMA copies 0xC000-0xC09F into OAM.
	for i := 0; i < 0xA0; i++ {
		b.Write(0xC000+uint16(i), byte(i+1))
	}

	// The write to FF46 completes the whole 160-byte copy by itself (spec
	// 4.1, 8): no further Tick call is needed for OAM to reflect it.
	b.Write(0xFF46, 0xC0) // trigger DMA from 0xC000

	if got := b.Read(0xFE00); got != 0x01 {
		t.Fatalf("OAM[0] after DMA got %02x, want 01", got)
	}
	if got := b.Read(0xFE9F); got != 0xA0 {
		t.Fatalf("OAM[9F] after DMA got %02x, want A0", got)
	}
}
