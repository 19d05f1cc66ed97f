package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/pixelheap/imgproc/internal/domain"
)

// stdEngine runs everything on Go rasters via disintegration/imaging. It is
// always compiled; the govips engine falls back to it for the formats and
// operations libvips does not cover.
type stdEngine struct{}

func (stdEngine) Name() string { return "imaging" }

func (e stdEngine) Apply(ctx context.Context, input []byte, op domain.Op) ([]Output, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch op.Kind {
	case domain.OpConvert:
		return e.convert(src, op)
	case domain.OpTile:
		return e.tile(ctx, src, op)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOpKind, op.Kind)
	}
}

func (e stdEngine) convert(src image.Image, op domain.Op) ([]Output, error) {
	img := src
	if op.RemoveBG {
		img = maskToTransparent(src, resolveKey(src, op), op.Fuzz)
	}

	data, err := encodeStd(img, op.Format, op.Quality)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return []Output{{
		Name:   op.BaseName + op.Ext,
		Data:   data,
		Format: op.Format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}}, nil
}

func (e stdEngine) tile(ctx context.Context, src image.Image, op domain.Op) ([]Output, error) {
	spec := *op.Tile
	bounds := src.Bounds()
	cols, rows := spec.GridSize(bounds.Dx(), bounds.Dy())

	outputs := make([]Output, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			rect := tileRect(bounds, spec, col, row)
			data, err := encodeStd(imaging.Crop(src, rect), op.Format, op.Quality)
			if err != nil {
				return nil, fmt.Errorf("tile %d_%d: %w", col, row, err)
			}
			outputs = append(outputs, Output{
				Name:   tileName(op, col, row),
				Data:   data,
				Format: op.Format,
				Width:  rect.Dx(),
				Height: rect.Dy(),
				Col:    col,
				Row:    row,
			})
		}
	}
	return outputs, nil
}

// tileRect returns the bounds of the (col, row) tile, truncated at the
// image's right and bottom edges so no tile is ever padded.
func tileRect(bounds image.Rectangle, spec domain.TileSpec, col, row int) image.Rectangle {
	x0 := bounds.Min.X + col*spec.Width
	y0 := bounds.Min.Y + row*spec.Height
	x1 := min(x0+spec.Width, bounds.Max.X)
	y1 := min(y0+spec.Height, bounds.Max.Y)
	return image.Rect(x0, y0, x1, y1)
}

func tileName(op domain.Op, col, row int) string {
	return fmt.Sprintf("%s_%d_%d%s", op.BaseName, col, row, op.Ext)
}

func encodeStd(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = defaultJPEGQuality
		}
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrEncode, err)
		}
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("%w: png: %v", ErrEncode, err)
		}
	case FormatGIF:
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, fmt.Errorf("%w: gif: %v", ErrEncode, err)
		}
	case FormatTIFF:
		if err := imaging.Encode(&buf, img, imaging.TIFF); err != nil {
			return nil, fmt.Errorf("%w: tiff: %v", ErrEncode, err)
		}
	case FormatBMP:
		if err := imaging.Encode(&buf, img, imaging.BMP); err != nil {
			return nil, fmt.Errorf("%w: bmp: %v", ErrEncode, err)
		}
	case FormatWebP:
		return nil, errors.New("webp export requires govips build tag")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
