// Command gbx runs the DMG emulation core, headless or windowed.
package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rvangent/gbx/internal/cart"
	"github.com/rvangent/gbx/internal/emu"
	"github.com/rvangent/gbx/internal/ui"
)

const version = "0.1.0"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case versionMode:
		fmt.Println("gbx " + version)
	case romInfoMode:
		runRomInfo(cli.RomInfo)
	default:
		runRun(cli.Run)
	}
}

func runRomInfo(r RomInfo) {
	rom, err := os.ReadFile(r.RomPath)
	if err != nil {
		fatalf("read %s: %v", r.RomPath, err)
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		fatalf("parse header: %v", err)
	}
	fmt.Println(h.String())
}

func runRun(r Run) {
	m := emu.New(emu.Config{Trace: r.Trace})
	if r.Save {
		if err := m.LoadROMFromFile(r.RomPath); err != nil {
			fatalf("load cart: %v", err)
		}
	} else {
		rom, err := os.ReadFile(r.RomPath)
		if err != nil {
			fatalf("read %s: %v", r.RomPath, err)
		}
		if err := m.LoadCartridge(rom); err != nil {
			fatalf("load cart: %v", err)
		}
	}

	if r.Headless {
		if err := runHeadless(m, r.Frames, r.OutPNG, r.Expect); err != nil {
			fatalf("%v", err)
		}
		if r.Save {
			if data, ok := m.SaveBattery(); ok {
				if err := os.WriteFile(cart.SavePath(r.RomPath), data, 0o644); err != nil {
					log.Printf("write save file: %v", err)
				}
			}
		}
		return
	}

	uiCfg := ui.LoadSettingsOrDefault()
	uiCfg.Scale = r.Scale
	app := ui.NewApp(uiCfg, m)
	if err := app.Run(); err != nil {
		fatalf("%v", err)
	}
	_ = ui.SaveSettings(uiCfg)

	if r.Save {
		if data, ok := m.SaveBattery(); ok {
			if err := os.WriteFile(cart.SavePath(r.RomPath), data, 0o644); err != nil {
				log.Printf("write save file: %v", err)
			}
		}
	}
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
