package emu

// Config controls how a Machine behaves across construction and reset.
type Config struct {
	Trace      bool // enable xlog tracing for every module
	LimitFPS   bool // caller should throttle StepFrame calls to ~60Hz; Machine itself never sleeps
	SampleRate int  // APU output sample rate in Hz; 0 selects the spec default (44100)
}
