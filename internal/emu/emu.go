// Package emu wires the CPU, PPU, APU, timer, joypad, interrupt controller
// and cartridge into a runnable Machine, and drives the per-instruction run
// loop described in spec 4.9: step the CPU, feed the resulting cycle delta
// to PPU/APU/timer, then let the interrupt controller dispatch.
package emu

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/rvangent/gbx/internal/apu"
	"github.com/rvangent/gbx/internal/bus"
	"github.com/rvangent/gbx/internal/cart"
	"github.com/rvangent/gbx/internal/cpu"
	"github.com/rvangent/gbx/internal/interrupt"
	"github.com/rvangent/gbx/internal/joypad"
	"github.com/rvangent/gbx/internal/ppu"
	"github.com/rvangent/gbx/internal/timer"
	"github.com/rvangent/gbx/internal/xlog"
)

// cyclesPerFrame is the DMG's fixed per-frame cycle budget (154 lines *
// 456 dots).
const cyclesPerFrame = 70224

const defaultSampleRate = 44100

// Buttons is a single host-input poll's pressed-button snapshot.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() joypad.Button {
	var m joypad.Button
	if b.Right {
		m |= joypad.Right
	}
	if b.Left {
		m |= joypad.Left
	}
	if b.Up {
		m |= joypad.Up
	}
	if b.Down {
		m |= joypad.Down
	}
	if b.A {
		m |= joypad.A
	}
	if b.B {
		m |= joypad.B
	}
	if b.Select {
		m |= joypad.Select
	}
	if b.Start {
		m |= joypad.Start
	}
	return m
}

// Machine owns every DMG subsystem for one loaded cartridge.
type Machine struct {
	cfg Config

	bus  *bus.Bus
	cpu  *cpu.CPU
	irq  *interrupt.Controller
	ppu  *ppu.PPU
	apu  *apu.APU
	tmr  *timer.Timer
	pad  *joypad.Joypad
	cart cart.Cartridge

	romPath string

	// pendingCycles accumulates the cycles billed by the current Step call,
	// including any extra cycles the interrupt controller adds while
	// dispatching (halt-clear, interrupt service).
	pendingCycles int
}

func New(cfg Config) *Machine {
	if cfg.Trace {
		xlog.EnableAll()
	}
	return &Machine{cfg: cfg}
}

// LoadROMFromFile reads a ROM file, constructs a fresh machine around it,
// and loads its sibling .sav file if one exists.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(rom); err != nil {
		return err
	}
	m.romPath = path
	return cart.LoadSaveFile(m.cart, path)
}

// LoadCartridge parses rom and rebuilds every subsystem around it, starting
// the CPU at its DMG post-boot state (spec 3.6) with no boot ROM (Non-goal:
// boot ROM emulation is not part of this port).
func (m *Machine) LoadCartridge(rom []byte) error {
	c, h, err := cart.Load(rom)
	if err != nil {
		return err
	}
	m.cart = c
	m.romPath = ""

	m.irq = interrupt.New()
	m.ppu = ppu.New(func(bit int) {
		if bit == 0 {
			m.irq.Request(interrupt.VBlank)
		} else {
			m.irq.Request(interrupt.LCDStat)
		}
	})
	rate := m.cfg.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	m.apu = apu.New(rate)
	m.tmr = timer.New()
	m.pad = joypad.New()
	m.bus = bus.New(c, m.ppu, m.apu, m.tmr, m.pad, m.irq)
	m.cpu = cpu.New(m.bus, m.irq)
	m.cpu.Reset()

	xlog.For(xlog.Cart).Infof("loaded cart: %s", h)
	return nil
}

// Reset restarts execution at the DMG post-boot state without reloading
// the cartridge or clearing its RAM.
func (m *Machine) Reset() {
	if m.cpu == nil {
		return
	}
	m.cpu.Reset()
}

// interrupt.CPU is implemented directly on Machine: Halted/ClearHalt/
// EnterInterrupt forward to the real CPU, and AddClock bills any extra
// cycles the interrupt controller spends (spec 4.7) to PPU/APU/timer
// exactly like a normal instruction's cycles.
func (m *Machine) Halted() bool                { return m.cpu.Halted() }
func (m *Machine) ClearHalt()                  { m.cpu.ClearHalt() }
func (m *Machine) EnterInterrupt(vector uint16) { m.cpu.EnterInterrupt(vector) }

func (m *Machine) AddClock(cycles int) {
	m.tickSubsystems(cycles)
	m.pendingCycles += cycles
}

// tickSubsystems advances PPU/APU/timer by cycles. OAM DMA is not ticked
// here: a write to FF46 completes its 160-byte copy synchronously inside
// Bus.Write itself (spec 4.1, 8), so there is nothing left for the bus to
// do once a run-loop step's cycle delta is known.
func (m *Machine) tickSubsystems(cycles int) {
	m.ppu.Tick(cycles)
	m.apu.Tick(cycles)
	m.tmr.Tick(cycles)
}

// Step executes exactly one CPU instruction, advances every other
// subsystem by the same cycle delta, then lets the interrupt controller
// dispatch (spec 4.9). While halted, the CPU is never stepped: the run
// loop bills a flat 4 cycles instead, so every other subsystem still
// advances and a pending interrupt can still clear the halt via Dispatch.
// It returns the total cycles billed, including any the interrupt
// controller itself added.
func (m *Machine) Step() int {
	m.pendingCycles = 0
	var cycles int
	if m.cpu.Halted() {
		cycles = 4
	} else {
		cycles = m.cpu.Step()
	}
	m.tickSubsystems(cycles)
	m.pendingCycles += cycles

	xlog.For(xlog.CPU).Debugf("pc=%04X sp=%04X cycles=%d", m.cpu.PC, m.cpu.SP, cycles)

	m.irq.Dispatch(m)
	return m.pendingCycles
}

// StepFrame runs the machine for one video frame's worth of cycles. The
// PPU renders each scanline internally as it completes (spec 4.4, 4.9);
// callers pull the finished frame via Framebuffer/NeedRender.
func (m *Machine) StepFrame() {
	total := 0
	for total < cyclesPerFrame {
		total += m.Step()
	}
}

// StepFrameNoRender is StepFrame under another name: rendering is always a
// side effect of PPU.Tick, so there is no separate render pass to skip.
// Kept for callers (e.g. test-ROM runners) that only care about CPU/serial
// state and never touch the framebuffer.
func (m *Machine) StepFrameNoRender() { m.StepFrame() }

// Framebuffer returns the PPU's current 160x144 RGBA8888 pixel buffer.
func (m *Machine) Framebuffer() []byte { return m.ppu.Framebuffer() }

// NeedRender reports (and clears) whether a new frame has completed since
// the last call.
func (m *Machine) NeedRender() bool { return m.ppu.NeedRender() }

// SetButtons replaces the full pressed-button state for the next input
// poll.
func (m *Machine) SetButtons(b Buttons) {
	if m.pad == nil {
		return
	}
	m.pad.SetButtons(b.mask())
}

// SetSerialWriter attaches an observer for bytes shifted out over the
// (unconnected) serial port, e.g. to capture a test ROM's pass/fail report.
func (m *Machine) SetSerialWriter(w bus.SerialWriter) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// APUPullSamples returns up to max mono int16 PCM samples from the APU's
// ring buffer.
func (m *Machine) APUPullSamples(max int) []int16 {
	if m.apu == nil {
		return nil
	}
	return m.apu.PullSamples(max)
}

// APUAvailable reports how many samples are currently buffered.
func (m *Machine) APUAvailable() int {
	if m.apu == nil {
		return 0
	}
	return m.apu.Available()
}

// ROMPath returns the path LoadROMFromFile most recently loaded, or "" if
// the cartridge was loaded from an in-memory buffer.
func (m *Machine) ROMPath() string { return m.romPath }

// SaveBattery returns the loaded cartridge's external RAM, if it is
// battery-backed.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.cart.(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// LoadBattery loads external RAM bytes into the cartridge, if it is
// battery-backed.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.cart.(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// WriteSaveFile persists the cartridge's battery-backed RAM to its sibling
// .sav path; a no-op for cartridges without RAM or without a known path.
func (m *Machine) WriteSaveFile() error {
	if m.romPath == "" || m.cart == nil {
		return nil
	}
	return cart.WriteSaveFile(m.cart, m.romPath)
}

type machineState struct {
	Bus []byte
	CPU []byte
	IRQ []byte
}

// SaveState snapshots the bus (and every subsystem it owns), the CPU, and
// the interrupt controller — the interrupt controller is not owned by Bus,
// since CPU and Bus share the same pointer to it.
func (m *Machine) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(machineState{
		Bus: m.bus.SaveState(),
		CPU: m.cpu.SaveState(),
		IRQ: m.irq.SaveState(),
	})
	return buf.Bytes()
}

func (m *Machine) LoadState(data []byte) error {
	var s machineState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return err
	}
	m.bus.LoadState(s.Bus)
	m.cpu.LoadState(s.CPU)
	m.irq.LoadState(s.IRQ)
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.SaveState(), 0o644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
