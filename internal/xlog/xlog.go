// Package xlog provides per-subsystem leveled tracing over logrus.
//
// Each module (CPU, PPU, APU, timer, cart, bus) gets its own Logger. A
// module's trace calls are free when that module is disabled: the caller
// never builds the log.Fields or formats the message.
package xlog

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type Module uint8

const (
	CPU Module = iota
	PPU
	APU
	Timer
	Cart
	Bus
	numModules
)

func (m Module) String() string {
	switch m {
	case CPU:
		return "cpu"
	case PPU:
		return "ppu"
	case APU:
		return "apu"
	case Timer:
		return "timer"
	case Cart:
		return "cart"
	case Bus:
		return "bus"
	default:
		return "?"
	}
}

// ModuleByName looks up a module by its lowercase name, as accepted on the
// --log CLI flag.
func ModuleByName(name string) (Module, bool) {
	for m := Module(0); m < numModules; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// ModuleNames lists every known module name, for CLI help text.
func ModuleNames() []string {
	names := make([]string, 0, numModules)
	for m := Module(0); m < numModules; m++ {
		names = append(names, m.String())
	}
	return names
}

var enabledMask uint32 // atomic bitmask, one bit per Module

// Enable turns on tracing for the given modules.
func Enable(mods ...Module) {
	var bits uint32
	for _, m := range mods {
		bits |= 1 << uint(m)
	}
	for {
		old := atomic.LoadUint32(&enabledMask)
		if atomic.CompareAndSwapUint32(&enabledMask, old, old|bits) {
			return
		}
	}
}

// EnableAll turns on tracing for every module.
func EnableAll() {
	atomic.StoreUint32(&enabledMask, (1<<numModules)-1)
}

// DisableAll turns off tracing for every module.
func DisableAll() {
	atomic.StoreUint32(&enabledMask, 0)
}

// ParseMask turns a comma-separated "cpu,ppu" (or "all"/"no") string into
// the set of modules to enable; it is the Decode half of the CLI flag.
func ParseMask(spec string) ([]Module, bool, error) {
	var mods []Module
	all := false
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		switch tok {
		case "", "no":
			continue
		case "all":
			all = true
		default:
			m, ok := ModuleByName(tok)
			if !ok {
				return nil, false, errUnknownModule(tok)
			}
			mods = append(mods, m)
		}
	}
	return mods, all, nil
}

type errUnknownModule string

func (e errUnknownModule) Error() string { return "unknown log module " + string(e) }

func (m Module) enabled() bool {
	return atomic.LoadUint32(&enabledMask)&(1<<uint(m)) != 0
}

var backend = logrus.New()

func init() {
	backend.Out = os.Stderr
	backend.SetLevel(logrus.DebugLevel)
}

// Logger is a nullable, zero-overhead-when-disabled wrapper around a
// logrus entry scoped to one module.
type Logger struct {
	mod Module
}

// For returns the Logger for the given module.
func For(mod Module) Logger { return Logger{mod: mod} }

func (l Logger) entry() *logrus.Entry {
	return backend.WithField("mod", l.mod.String())
}

func (l Logger) Debugf(format string, args ...any) {
	if l.mod.enabled() {
		l.entry().Debugf(format, args...)
	}
}

func (l Logger) Infof(format string, args ...any) {
	if l.mod.enabled() {
		l.entry().Infof(format, args...)
	}
}

func (l Logger) Warnf(format string, args ...any) {
	if l.mod.enabled() {
		l.entry().Warnf(format, args...)
	}
}

func (l Logger) Errorf(format string, args ...any) {
	// Errors are always surfaced regardless of module mask.
	l.entry().Errorf(format, args...)
}
