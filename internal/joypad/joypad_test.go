package joypad

import "testing"

func TestJoypad_DefaultRead(t *testing.T) {
	j := New()
	if got := j.Read(); got&0x0F != 0x0F {
		t.Fatalf("default JOYP lower bits got %02x want 0x0F", got)
	}
}

func TestJoypad_DPad(t *testing.T) {
	j := New()
	j.Write(0x20) // select dpad (P14=0, P15=1)
	j.SetButtons(Right | Up)
	if got := j.Read() & 0x0F; got != 0x0A {
		t.Fatalf("dpad got %02x want 0x0A", got)
	}
}

func TestJoypad_Buttons(t *testing.T) {
	j := New()
	j.Write(0x10) // select buttons (P15=0, P14=1)
	j.SetButtons(A | Start)
	if got := j.Read() & 0x0F; got != 0x06 {
		t.Fatalf("buttons got %02x want 0x06", got)
	}
}

func TestJoypad_InterruptOnPress(t *testing.T) {
	j := New()
	var fired int
	j.RequestInterrupt = func() { fired++ }
	j.Write(0x20)
	j.SetButtons(Right)
	if fired != 1 {
		t.Fatalf("expected interrupt on press, fired=%d", fired)
	}
	j.SetButtons(Right) // already pressed, no new transition
	if fired != 1 {
		t.Fatalf("unexpected extra interrupt, fired=%d", fired)
	}
}
