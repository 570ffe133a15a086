package emu

import (
	"encoding/binary"
	"testing"

	"github.com/rvangent/gbx/internal/interrupt"
)

// buildROMOnly makes a synthetic 32KiB ROM-only cartridge with a valid
// header and checksums, matching cart/header_test.go's buildROM helper.
func buildROMOnly() []byte {
	rom := make([]byte, 32*1024)
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	rom[0x0143] = 0x00
	rom[0x0144], rom[0x0145] = '0', '1'
	rom[0x0147] = 0x00 // ROM only
	rom[0x0148] = 0x00 // 32KiB
	rom[0x0149] = 0x00 // no RAM
	rom[0x014B] = 0x33
	rom[0x014C] = 0x01

	var hsum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		hsum = hsum - rom[addr] - 1
	}
	rom[0x014D] = hsum

	var gsum uint16
	for i := range rom {
		if i == 0x014E || i == 0x014F {
			continue
		}
		gsum += uint16(rom[i])
	}
	binary.BigEndian.PutUint16(rom[0x014E:0x0150], gsum)
	return rom
}

func TestMachine_LoadCartridge_ResetsToPostBootState(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(buildROMOnly()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if m.cpu.PC != 0x0100 {
		t.Fatalf("PC = %#04x, want 0x0100", m.cpu.PC)
	}
	if m.cpu.SP != 0xFFFE {
		t.Fatalf("SP = %#04x, want 0xFFFE", m.cpu.SP)
	}
}

func TestMachine_Step_AdvancesCyclesAndPC(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(buildROMOnly()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	startPC := m.cpu.PC
	cycles := m.Step()
	if cycles <= 0 {
		t.Fatalf("Step returned %d cycles, want > 0", cycles)
	}
	if m.cpu.PC == startPC {
		t.Fatalf("PC did not advance after Step")
	}
}

func TestMachine_SaveLoadState_RoundTrips(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(buildROMOnly()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	for i := 0; i < 1000; i++ {
		m.Step()
	}
	snap := m.SaveState()

	fresh := New(Config{})
	if err := fresh.LoadCartridge(buildROMOnly()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := fresh.LoadState(snap); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if fresh.cpu.PC != m.cpu.PC || fresh.cpu.SP != m.cpu.SP {
		t.Fatalf("state did not round-trip: got PC=%#04x SP=%#04x, want PC=%#04x SP=%#04x",
			fresh.cpu.PC, fresh.cpu.SP, m.cpu.PC, m.cpu.SP)
	}
}

func TestMachine_Step_HaltStallsCPUUntilInterruptPending(t *testing.T) {
	rom := buildROMOnly()
	rom[0x0100] = 0x76 // HALT
	rom[0x0101] = 0x3C // INC A, should never run while halted

	m := New(Config{})
	if err := m.LoadCartridge(rom); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}

	if cycles := m.Step(); cycles != 4 {
		t.Fatalf("HALT instruction cycles = %d, want 4", cycles)
	}
	if !m.cpu.Halted() {
		t.Fatalf("CPU should be halted after executing HALT")
	}
	haltedPC := m.cpu.PC

	for i := 0; i < 5; i++ {
		cycles := m.Step()
		if cycles != 4 {
			t.Fatalf("Step() while halted billed %d cycles, want a flat 4", cycles)
		}
		if m.cpu.PC != haltedPC {
			t.Fatalf("PC advanced to %#04x while halted; HALT must stall the CPU", m.cpu.PC)
		}
		if !m.cpu.Halted() {
			t.Fatalf("CPU unexpectedly left halt with no pending interrupt")
		}
	}

	// A pending interrupt clears halt even with IME disabled (spec 4.7);
	// execution resumes at the instruction right after HALT.
	m.irq.IE = interrupt.VBlank
	m.irq.Request(interrupt.VBlank)
	m.Step()
	if m.cpu.Halted() {
		t.Fatalf("pending interrupt should have cleared halt")
	}
}

func TestMachine_Step_OAMDMACompletesWithinOneStep(t *testing.T) {
	rom := buildROMOnly()
	// LD A,0xC0 ; LDH (0x46),A -- triggers OAM DMA from 0xC000.
	rom[0x0100] = 0x3E
	rom[0x0101] = 0xC0
	rom[0x0102] = 0xE0
	rom[0x0103] = 0x46

	m := New(Config{})
	if err := m.LoadCartridge(rom); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}

	for i := 0; i < 0xA0; i++ {
		m.bus.Write(0xC000+uint16(i), byte(i+1))
	}

	m.Step() // LD A,0xC0
	m.Step() // LDH (0x46),A: must finish the whole 160-byte copy by itself

	if got := m.bus.Read(0xFE00); got != 0x01 {
		t.Fatalf("OAM[0] right after the DMA-triggering step = %#02x, want 0x01", got)
	}
	if got := m.bus.Read(0xFE9F); got != 0xA0 {
		t.Fatalf("OAM[9F] right after the DMA-triggering step = %#02x, want 0xA0", got)
	}
}

func TestMachine_SetButtons_ReachesJoypad(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(buildROMOnly()); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.SetButtons(Buttons{A: true, Right: true})
	if m.pad == nil {
		t.Fatalf("joypad not wired")
	}
}
