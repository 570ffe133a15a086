package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/rvangent/gbx/internal/xlog"
)

type mode byte

const (
	runMode mode = iota
	romInfoMode
	versionMode
)

type CLI struct {
	Run     Run     `cmd:"" help:"Run a ROM." default:"true"`
	RomInfo RomInfo `cmd:"" help:"Show ROM header info." name:"rom-info"`
	Version Version `cmd:"" help:"Show gbx version."`

	Log logModMask `help:"${log_help}" placeholder:"cpu,ppu,apu,timer,cart,bus,all,no"`

	mode mode
}

type Run struct {
	RomPath  string `arg:"" name:"rom" help:"Path to a .gb ROM." required:"true" type:"existingfile"`
	Headless bool   `help:"Run without opening a window." default:"false"`
	Frames   int    `help:"Frames to run in headless mode." default:"300"`
	OutPNG   string `help:"Write the last framebuffer to a PNG file (headless only)." type:"path"`
	Expect   string `help:"Assert the final framebuffer CRC32 (hex, headless only)."`
	Scale    int    `help:"Window scale factor." default:"3"`
	Trace    bool   `help:"Enable per-module tracing (see --log for finer control)." default:"false"`
	Save     bool   `help:"Persist battery RAM to a sibling .sav file." default:"true"`
}

type RomInfo struct {
	RomPath string `arg:"" name:"rom" help:"Path to a .gb ROM." required:"true" type:"existingfile"`
}

type Version struct{}

var vars = kong.Vars{
	"log_help": "Enable tracing for the given comma-separated modules.",
}

func parseArgs(args []string) CLI {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("gbx"),
		kong.Description("A DMG Game Boy emulation core."),
		kong.UsageOnError(),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "rom-info <rom>":
		cli.mode = romInfoMode
	case "version":
		cli.mode = versionMode
	default:
		cli.mode = runMode
	}
	return cli
}

// logModMask decodes a comma-separated module list into xlog's enabled set.
//
// Implements kong.MapperValue.
type logModMask struct{}

func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	mods, all, err := xlog.ParseMask(tok.Value.(string))
	if err != nil {
		return err
	}
	if all {
		xlog.EnableAll()
		return nil
	}
	xlog.Enable(mods...)
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+": "+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gbx: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
