// Package interrupt implements the IE/IF latches and IME-gated priority
// dispatch described in the DMG interrupt controller, kept deliberately
// separate from the CPU package: interrupts become visible only at the
// dispatch phase of a run-loop step, never mid-instruction.
package interrupt

import (
	"bytes"
	"encoding/gob"
)

const (
	VBlank byte = 1 << iota
	LCDStat
	Timer
	Serial
	Joypad

	pendingMask = 0x1F
)

var vectors = [5]struct {
	bit  byte
	addr uint16
}{
	{VBlank, 0x40},
	{LCDStat, 0x48},
	{Timer, 0x50},
	{Serial, 0x58},
	{Joypad, 0x60},
}

// IME tri-state, matching the source's ime field: 0 disabled, 1 scheduled
// (EI was just executed), 2 enabled.
type IMEState uint8

const (
	Disabled IMEState = 0
	Scheduled IMEState = 1
	Enabled   IMEState = 2
)

type Controller struct {
	IE byte
	IF byte
	IME IMEState
}

func New() *Controller {
	return &Controller{}
}

// Request latches the given interrupt bit into IF.
func (c *Controller) Request(bit byte) {
	c.IF |= bit
}

func (c *Controller) pending() byte {
	return c.IE & c.IF & pendingMask
}

// CPU is the minimal surface Dispatch needs from the CPU: enough to
// service an interrupt (push PC, jump, exit halt) without the interrupt
// package depending on the cpu package's internals.
type CPU interface {
	Halted() bool
	ClearHalt()
	EnterInterrupt(vector uint16) // pushes PC, sets PC=vector; Dispatch clears IME itself
	AddClock(cycles int)
}

// Dispatch implements the per-step interrupt-controller phase of the run
// loop (spec 4.7): clear halt on any pending interrupt (billing 4 cycles),
// then, IME permitting, service the highest-priority pending interrupt.
func (c *Controller) Dispatch(cpu CPU) {
	pend := c.pending()
	if pend != 0 && cpu.Halted() {
		cpu.ClearHalt()
		cpu.AddClock(4)
	}

	switch c.IME {
	case Disabled:
		return
	case Scheduled:
		c.IME = Enabled
		return
	}

	if pend == 0 {
		return
	}

	for _, v := range vectors {
		if pend&v.bit != 0 {
			c.IF &^= v.bit
			c.IME = Disabled
			cpu.EnterInterrupt(v.addr)
			cpu.AddClock(20)
			return
		}
	}
}

type controllerState struct {
	IE, IF byte
	IME    IMEState
}

func (c *Controller) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(controllerState{IE: c.IE, IF: c.IF, IME: c.IME})
	return buf.Bytes()
}

func (c *Controller) LoadState(data []byte) {
	var s controllerState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return
	}
	c.IE, c.IF, c.IME = s.IE, s.IF, s.IME
}
