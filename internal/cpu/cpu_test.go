package cpu

import (
	"testing"

	"github.com/rvangent/gbx/internal/apu"
	"github.com/rvangent/gbx/internal/bus"
	"github.com/rvangent/gbx/internal/cart"
	"github.com/rvangent/gbx/internal/interrupt"
	"github.com/rvangent/gbx/internal/joypad"
	"github.com/rvangent/gbx/internal/ppu"
	"github.com/rvangent/gbx/internal/timer"
)

func newTestBus(c cart.Cartridge, irq *interrupt.Controller) *bus.Bus {
	return bus.New(c, ppu.New(nil), apu.New(0), timer.New(), joypad.New(), irq)
}

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	c := cart.NewROMOnly(rom)
	irq := interrupt.New()
	b := newTestBus(c, irq)
	return New(b, irq)
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step()
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if c.F&flagZ == 0 {
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(prog)
	c.Step() // LD A,77
	c.Step() // LD (C000),A
	if a := c.bus.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	c.Step() // LD A,00
	c.Step() // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0], rom[1], rom[2] = 0xC3, 0x10, 0x00 // JP 0x0010
	rom[0x0010] = 0x18                        // JR -2
	rom[0x0011] = 0xFE
	cartridge := cart.NewROMOnly(rom)
	irq := interrupt.New()
	b := newTestBus(cartridge, irq)
	c := New(b, irq)

	cycles := c.Step() // JP
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	c.Step()
	if c.PC != pcBefore {
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x04})
	c.B = 0x0F
	c.F = flagC
	c.Step()
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if c.F&flagH == 0 {
		t.Fatalf("INC B should set H flag")
	}
	if c.F&flagC == 0 {
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0x00 || c.F&flagZ == 0 {
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_DEC_PreservesCarry(t *testing.T) {
	c := newCPUWithROM([]byte{0x05})
	c.B = 0x01
	c.F = flagC
	c.Step()
	if c.B != 0x00 || c.F&flagZ == 0 || c.F&flagN == 0 {
		t.Fatalf("DEC B to 0 wrong flags: B=%02x F=%02x", c.B, c.F)
	}
	if c.F&flagC == 0 {
		t.Fatalf("DEC should preserve carry")
	}
}

func TestCPU_ALU_ADD_SUB(t *testing.T) {
	c := newCPUWithROM([]byte{0xC6, 0x10, 0xD6, 0x20}) // ADD A,0x10; SUB 0x20
	c.A = 0xF0
	c.Step() // ADD
	if c.A != 0x00 || c.F&flagZ == 0 || c.F&flagC == 0 {
		t.Fatalf("ADD overflow wrong: A=%02x F=%02x", c.A, c.F)
	}
	c.Step() // SUB 0x20 from 0x00
	if c.A != 0xE0 || c.F&flagN == 0 || c.F&flagC == 0 {
		t.Fatalf("SUB borrow wrong: A=%02x F=%02x", c.A, c.F)
	}
}

func TestCPU_CP_DoesNotModifyA(t *testing.T) {
	c := newCPUWithROM([]byte{0xFE, 0x10})
	c.A = 0x10
	c.Step()
	if c.A != 0x10 {
		t.Fatalf("CP must not modify A")
	}
	if c.F&flagZ == 0 {
		t.Fatalf("CP of equal values should set Z")
	}
}

func TestCPU_PushPopPreservesValue(t *testing.T) {
	c := newCPUWithROM([]byte{0xC5, 0xC1}) // PUSH BC; POP BC
	c.setBC(0xBEEF)
	c.Step()
	c.B, c.C = 0, 0
	c.Step()
	if c.getBC() != 0xBEEF {
		t.Fatalf("push/pop round trip got %04x want BEEF", c.getBC())
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0], rom[1], rom[2] = 0xCD, 0x10, 0x00 // CALL 0x0010
	rom[0x0010] = 0xC9                        // RET
	cartridge := cart.NewROMOnly(rom)
	irq := interrupt.New()
	b := newTestBus(cartridge, irq)
	c := New(b, irq)

	c.Step() // CALL
	if c.PC != 0x0010 {
		t.Fatalf("CALL did not jump, PC=%04x", c.PC)
	}
	c.Step() // RET
	if c.PC != 0x0003 {
		t.Fatalf("RET did not return, PC=%04x", c.PC)
	}
}

func TestCPU_DI_EI_SetIME(t *testing.T) {
	c := newCPUWithROM([]byte{0xF3, 0xFB, 0x00}) // DI; EI; NOP
	c.Step()                                     // DI
	if c.irq.IME != interrupt.Disabled {
		t.Fatalf("DI should disable IME immediately")
	}
	c.Step() // EI
	if c.irq.IME != interrupt.Scheduled {
		t.Fatalf("EI should schedule IME, not enable immediately")
	}
}

func TestCPU_RETI_EnablesIMEImmediately(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0] = 0xD9 // RETI
	cartridge := cart.NewROMOnly(rom)
	irq := interrupt.New()
	b := newTestBus(cartridge, irq)
	c := New(b, irq)
	c.SP = 0xFFFC
	c.write16(0xFFFC, 0x1234)

	c.Step()
	if c.irq.IME != interrupt.Enabled {
		t.Fatalf("RETI should enable IME immediately, got %v", c.irq.IME)
	}
	if c.PC != 0x1234 {
		t.Fatalf("RETI should pop PC, got %04x", c.PC)
	}
}

func TestCPU_HALT_SetsHaltedFlag(t *testing.T) {
	c := newCPUWithROM([]byte{0x76})
	c.Step()
	if !c.Halted() {
		t.Fatalf("HALT should set halted flag")
	}
	c.ClearHalt()
	if c.Halted() {
		t.Fatalf("ClearHalt should clear halted flag")
	}
}

func TestCPU_EnterInterrupt_PushesPCAndJumps(t *testing.T) {
	c := newCPUWithROM([]byte{0x00})
	c.PC = 0x1000
	c.SP = 0xFFFE
	c.EnterInterrupt(0x0040)
	if c.PC != 0x0040 {
		t.Fatalf("EnterInterrupt should jump to vector, got %04x", c.PC)
	}
	if c.pop16() != 0x1000 {
		t.Fatalf("EnterInterrupt should push the pre-dispatch PC")
	}
}

func TestCPU_Reset_DMGPostBootState(t *testing.T) {
	c := newCPUWithROM([]byte{})
	c.A, c.B = 0xFF, 0xFF
	c.Reset()
	if c.getAF() != 0x01B0 || c.getBC() != 0x0013 || c.getDE() != 0x00D8 ||
		c.getHL() != 0x014D || c.SP != 0xFFFE || c.PC != 0x0100 {
		t.Fatalf("Reset produced wrong post-boot state: AF=%04x BC=%04x DE=%04x HL=%04x SP=%04x PC=%04x",
			c.getAF(), c.getBC(), c.getDE(), c.getHL(), c.SP, c.PC)
	}
}

func TestCPU_CB_BIT_SetsZFromTestedBit(t *testing.T) {
	c := newCPUWithROM([]byte{0xCB, 0x7F}) // BIT 7,A
	c.A = 0x00
	c.F = 0
	c.Step()
	if c.F&flagZ == 0 {
		t.Fatalf("BIT 7 of zero should set Z")
	}
	if c.F&flagH == 0 {
		t.Fatalf("BIT should always set H")
	}
}

func TestCPU_CB_SWAP(t *testing.T) {
	c := newCPUWithROM([]byte{0xCB, 0x37}) // SWAP A
	c.A = 0xA5
	c.Step()
	if c.A != 0x5A {
		t.Fatalf("SWAP A got %02x want 5A", c.A)
	}
}

func TestCPU_DAA_AfterAdd(t *testing.T) {
	c := newCPUWithROM([]byte{0xC6, 0x01, 0x27}) // ADD A,1; DAA
	c.A = 0x09
	c.Step()
	c.Step()
	if c.A != 0x10 {
		t.Fatalf("DAA after 0x09+0x01 got %02x want 10", c.A)
	}
}
