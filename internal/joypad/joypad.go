// Package joypad models the DMG's single input register at 0xFF00.
package joypad

import (
	"bytes"
	"encoding/gob"
)

// Button bits within the 2x4 key matrix (bit set = pressed).
const (
	Right Button = 1 << 0
	Left  Button = 1 << 1
	Up    Button = 1 << 2
	Down  Button = 1 << 3
	A     Button = 1 << 4
	B     Button = 1 << 5
	Select Button = 1 << 6
	Start Button = 1 << 7
)

type Button uint8

const (
	selectDirs = 1 << 4 // P14, active low
	selectBtns = 1 << 5 // P15, active low
)

// Joypad holds the currently-selected matrix half and the live button
// state; reading FF00 combines them.
type Joypad struct {
	selectBits byte // bits 4-5 of the last write, as stored (active-low)
	keys       Button

	RequestInterrupt func()
}

func New() *Joypad {
	return &Joypad{selectBits: selectDirs | selectBtns}
}

// SetButtons replaces the full pressed-button set, raising the Joypad
// interrupt on any 1->0 transition of a currently-visible bit.
func (j *Joypad) SetButtons(pressed Button) {
	before := j.visibleLowBits()
	j.keys = pressed
	after := j.visibleLowBits()
	// A visible bit is active-low; "pressed" 1->0 at the register level
	// corresponds to a button going from released to pressed while
	// visible. Detect any bit that was 1 (released) and is now 0 (pressed).
	if before&^after != 0 {
		if j.RequestInterrupt != nil {
			j.RequestInterrupt()
		}
	}
}

// Read returns the value visible at FF00: upper two bits always high,
// bits 4-5 as selected, bits 0-3 the selected half of the matrix,
// active-low.
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selectBits & 0x30) | j.visibleLowBits()
}

// Write stores the group-select bits (4-5); the source only ever keeps
// the most recently written selection, discarding whichever group was
// selected before - preserved intentionally (see DESIGN.md).
func (j *Joypad) Write(v byte) {
	before := j.visibleLowBits()
	j.selectBits = v & 0x30
	after := j.visibleLowBits()
	if before&^after != 0 {
		if j.RequestInterrupt != nil {
			j.RequestInterrupt()
		}
	}
}

func (j *Joypad) visibleLowBits() byte {
	var low byte = 0x0F
	if j.selectBits&selectDirs == 0 {
		low &= ^dirBits(j.keys)
	}
	if j.selectBits&selectBtns == 0 {
		low &= ^btnBits(j.keys)
	}
	return low & 0x0F
}

func dirBits(k Button) byte {
	var b byte
	if k&Right != 0 {
		b |= 1 << 0
	}
	if k&Left != 0 {
		b |= 1 << 1
	}
	if k&Up != 0 {
		b |= 1 << 2
	}
	if k&Down != 0 {
		b |= 1 << 3
	}
	return b
}

type joypadState struct {
	SelectBits byte
	Keys       Button
}

// SaveState snapshots the select-group bits and the pressed-key set last
// given to SetButtons.
func (j *Joypad) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(joypadState{SelectBits: j.selectBits, Keys: j.keys})
	return buf.Bytes()
}

func (j *Joypad) LoadState(data []byte) {
	var s joypadState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return
	}
	j.selectBits, j.keys = s.SelectBits, s.Keys
}

func btnBits(k Button) byte {
	var b byte
	if k&A != 0 {
		b |= 1 << 0
	}
	if k&B != 0 {
		b |= 1 << 1
	}
	if k&Select != 0 {
		b |= 1 << 2
	}
	if k&Start != 0 {
		b |= 1 << 3
	}
	return b
}
