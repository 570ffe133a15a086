package ui

import (
	"encoding/binary"
	"time"

	"github.com/rvangent/gbx/internal/emu"
)

// applyPlayerBufferSize sets the audio player's buffer to a small size for
// low latency, shrinking it further during fast-forward.
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := a.cfg.AudioBufferMs
	if a.cfg.AudioLowLatency || a.fast {
		bufMs /= 2
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}

// apuStream implements io.Reader by pulling mono PCM samples from the
// emulator's APU ring buffer and duplicating each sample across the L/R
// channels ebiten's audio.Player expects (spec 4.5: the engine outputs one
// mono channel; stereo duplication happens only at this presentation edge).
type apuStream struct {
	m          *emu.Machine
	lowLatency bool

	underruns  int
	lastPulled int
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s == nil || s.m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	maxFrames := len(p) / 4
	capFrames := 2048
	if s.lowLatency {
		capFrames = 1024
	}
	if maxFrames > capFrames {
		maxFrames = capFrames
	}

	want := maxFrames
	if avail := s.m.APUAvailable(); avail < want {
		want = avail
	}
	if want <= 0 {
		waitDur := 15 * time.Millisecond
		if s.lowLatency {
			waitDur = 8 * time.Millisecond
		}
		deadline := time.Now().Add(waitDur)
		for time.Now().Before(deadline) {
			if avail := s.m.APUAvailable(); avail > 0 {
				want = avail
				if want > maxFrames {
					want = maxFrames
				}
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	if want <= 0 {
		s.underruns++
		s.lastPulled = 0
		n := 256 * 4
		if n > len(p) {
			n = len(p) - len(p)%4
		}
		for i := 0; i < n; i++ {
			p[i] = 0
		}
		return n, nil
	}

	samples := s.m.APUPullSamples(want)
	i := 0
	for _, v := range samples {
		if i+3 >= len(p) {
			break
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(v))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(v))
		i += 4
	}
	s.lastPulled = len(samples)
	return i, nil
}
