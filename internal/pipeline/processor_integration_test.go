package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelheap/imgproc/internal/domain"
)

func TestLocalProcessor_ConvertFileInFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor()
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	req := Request{
		InputPath: inputPath,
		OutputDir: outputDir,
		Op: domain.Op{
			Kind:     domain.OpConvert,
			Format:   FormatBMP,
			Ext:      ".bmp",
			BaseName: "input",
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("expected %d source bytes, got %d", len(srcBytes), result.SourceBytes)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(result.Outputs))
	}

	out := result.Outputs[0]
	if out.Format != FormatBMP {
		t.Fatalf("expected bmp output format, got %s", out.Format)
	}
	if out.Path != filepath.Join(outputDir, "input.bmp") {
		t.Fatalf("unexpected output path %s", out.Path)
	}
	verifyImageSize(t, out.Path, 240, 120)
}

func TestLocalProcessor_TileWritesGrid(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "board.png")
	outputDir := filepath.Join(tmp, "tiles")

	if err := os.WriteFile(inputPath, buildTestPNG(t, 100, 80), 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor()
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		InputPath: inputPath,
		OutputDir: outputDir,
		Op: domain.Op{
			Kind:     domain.OpTile,
			Format:   FormatPNG,
			Ext:      ".png",
			Tile:     &domain.TileSpec{Width: 50, Height: 40},
			BaseName: "board",
		},
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(result.Outputs) != 4 {
		t.Fatalf("expected 4 tiles, got %d", len(result.Outputs))
	}
	for _, out := range result.Outputs {
		verifyImageSize(t, out.Path, 50, 40)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "board_1_1.png")); err != nil {
		t.Fatalf("expected tile board_1_1.png on disk: %v", err)
	}
}

func TestLocalProcessor_RequestValidation(t *testing.T) {
	processor, err := NewLocalProcessor()
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	op := domain.Op{
		Kind:     domain.OpConvert,
		Format:   FormatPNG,
		Ext:      ".png",
		BaseName: "x",
	}

	if _, err := processor.Process(context.Background(), Request{OutputDir: "out", Op: op}); err == nil {
		t.Fatal("expected error for missing input path")
	}
	if _, err := processor.Process(context.Background(), Request{InputPath: "in.png", Op: op}); err == nil {
		t.Fatal("expected error for missing output dir")
	}

	badOp := op
	badOp.Kind = "sharpen"
	if _, err := processor.Process(context.Background(), Request{InputPath: "in.png", OutputDir: "out", Op: badOp}); err == nil {
		t.Fatal("expected error for invalid op")
	}
}

func TestLocalProcessor_MissingInputFile(t *testing.T) {
	processor, err := NewLocalProcessor()
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		InputPath: filepath.Join(t.TempDir(), "nope.png"),
		OutputDir: t.TempDir(),
		Op: domain.Op{
			Kind:     domain.OpConvert,
			Format:   FormatPNG,
			Ext:      ".png",
			BaseName: "nope",
		},
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyImageSize(t *testing.T, path string, wantW, wantH int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if got := img.Bounds().Dx(); got != wantW {
		t.Fatalf("expected width %d, got %d", wantW, got)
	}
	if got := img.Bounds().Dy(); got != wantH {
		t.Fatalf("expected height %d, got %d", wantH, got)
	}
}
