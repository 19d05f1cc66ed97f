package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTwoTonePNG writes a PNG filled with bg plus a quarter-size fg square
// in the top-left corner, so bg is clearly dominant.
func writeTwoTonePNG(t *testing.T, path string, w, h int, bg, fg color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	for y := 0; y < h/4; y++ {
		for x := 0; x < w/4; x++ {
			img.SetNRGBA(x, y, fg)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIdentifyPrintsPaletteDarkestFirst(t *testing.T) {
	white := color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	dark := color.NRGBA{R: 10, G: 10, B: 10, A: 255}
	input := filepath.Join(t.TempDir(), "card.png")
	writeTwoTonePNG(t, input, 64, 64, white, dark)

	setFlag(t, identifyCmd, "colors", "2")
	var buf bytes.Buffer
	identifyCmd.SetOut(&buf)
	t.Cleanup(func() { identifyCmd.SetOut(nil) })

	if err := runIdentify(identifyCmd, []string{input}); err != nil {
		t.Fatalf("identify: %v", err)
	}

	report := buf.String()
	if !strings.Contains(report, "Format:      png") {
		t.Fatalf("missing png format line in:\n%s", report)
	}
	if !strings.Contains(report, "Dimensions:  64 x 64") {
		t.Fatalf("missing dimensions line in:\n%s", report)
	}

	entries := paletteEntries(t, report)
	if len(entries) != 2 {
		t.Fatalf("expected 2 palette entries, got %d in:\n%s", len(entries), report)
	}
	// The white backdrop dominates, but the dark square must print first.
	if brightnessOf(entries[0]) >= brightnessOf(entries[1]) {
		t.Fatalf("palette not ordered darkest first: %v", entries)
	}
}

func paletteEntries(t *testing.T, report string) [][3]int {
	t.Helper()
	var entries [][3]int
	for _, line := range strings.Split(report, "\n") {
		idx := strings.Index(line, "rgb(")
		if idx < 0 {
			continue
		}
		var r, g, b int
		if _, err := fmt.Sscanf(line[idx:], "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
			t.Fatalf("parse palette line %q: %v", line, err)
		}
		entries = append(entries, [3]int{r, g, b})
	}
	return entries
}

func brightnessOf(rgb [3]int) int {
	return rgb[0] + rgb[1] + rgb[2]
}
