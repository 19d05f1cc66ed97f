//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"github.com/pixelheap/imgproc/internal/domain"
)

// govipsEngine exports jpeg, png and webp through libvips and hands anything
// else to the Go engine. Color-key masking always runs on the Go raster;
// libvips has no equivalent operation.
type govipsEngine struct{}

func (govipsEngine) Name() string { return "govips" }

func (e govipsEngine) Apply(ctx context.Context, input []byte, op domain.Op) ([]Output, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch op.Kind {
	case domain.OpConvert:
		if op.RemoveBG && op.Format == FormatWebP {
			// Mask in Go, then let vips do the webp export the Go
			// encoders cannot.
			masked, err := maskedPNG(input, op)
			if err != nil {
				return nil, err
			}
			return e.transcode(masked, op)
		}
		if op.RemoveBG || !vipsSupports(op.Format) {
			return stdEngine{}.Apply(ctx, input, op)
		}
		return e.transcode(input, op)
	case domain.OpTile:
		if !vipsSupports(op.Format) {
			return stdEngine{}.Apply(ctx, input, op)
		}
		return e.tile(ctx, input, op)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOpKind, op.Kind)
	}
}

func (e govipsEngine) transcode(input []byte, op domain.Op) ([]Output, error) {
	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	data, err := exportVips(img, op.Format, op.Quality)
	if err != nil {
		return nil, err
	}
	return []Output{{
		Name:   op.BaseName + op.Ext,
		Data:   data,
		Format: op.Format,
		Width:  img.Width(),
		Height: img.Height(),
	}}, nil
}

func (e govipsEngine) tile(ctx context.Context, input []byte, op domain.Op) ([]Output, error) {
	probe, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	srcWidth, srcHeight := probe.Width(), probe.Height()
	probe.Close()

	spec := *op.Tile
	cols, rows := spec.GridSize(srcWidth, srcHeight)

	outputs := make([]Output, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			// ExtractArea mutates the ref, so decode a fresh one per tile.
			img, err := vips.NewImageFromBuffer(input)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecode, err)
			}
			x := col * spec.Width
			y := row * spec.Height
			w := min(spec.Width, srcWidth-x)
			h := min(spec.Height, srcHeight-y)
			if err := img.ExtractArea(x, y, w, h); err != nil {
				img.Close()
				return nil, fmt.Errorf("extract tile %d_%d: %w", col, row, err)
			}
			data, err := exportVips(img, op.Format, op.Quality)
			img.Close()
			if err != nil {
				return nil, fmt.Errorf("tile %d_%d: %w", col, row, err)
			}
			outputs = append(outputs, Output{
				Name:   tileName(op, col, row),
				Data:   data,
				Format: op.Format,
				Width:  w,
				Height: h,
				Col:    col,
				Row:    row,
			})
		}
	}
	return outputs, nil
}

func vipsSupports(format string) bool {
	switch format {
	case FormatJPEG, FormatPNG, FormatWebP:
		return true
	default:
		return false
	}
}

func maskedPNG(input []byte, op domain.Op) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	masked := maskToTransparent(src, resolveKey(src, op), op.Fuzz)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, masked, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: png intermediate: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func exportVips(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case FormatJPEG:
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrEncode, err)
		}
		return data, nil
	case FormatPNG:
		params := vips.NewPngExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("%w: png: %v", ErrEncode, err)
		}
		return data, nil
	case FormatWebP:
		params := vips.NewWebpExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("%w: webp: %v", ErrEncode, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
