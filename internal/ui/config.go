package ui

// Config contains window, input and audio settings for the ebiten driver.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor

	AudioBufferMs   int  // desired audio player buffer size, in milliseconds
	AudioLowLatency bool // halve the buffer size for lower latency at the cost of more underrun risk
}

// Defaults fills unset fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbx"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
}
