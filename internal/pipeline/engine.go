package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pixelheap/imgproc/internal/domain"
)

// Canonical output format names understood by the engines.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatTIFF = "tiff"
	FormatBMP  = "bmp"
	FormatWebP = "webp"
)

const defaultJPEGQuality = 80

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidOpKind     = errors.New("invalid pipeline operation")
	ErrDecode            = errors.New("decode image")
	ErrEncode            = errors.New("encode image")
)

// Output is one encoded artifact produced by an engine. Col and Row are grid
// coordinates; whole-image outputs sit at 0,0.
type Output struct {
	Name   string // file name relative to the output directory
	Data   []byte
	Format string
	Width  int
	Height int
	Col    int
	Row    int
}

// Engine applies one operation to an encoded source image and returns the
// encoded outputs. The implementation is selected at build time; the govips
// build swaps in libvips for the formats it covers.
type Engine interface {
	Name() string
	Apply(ctx context.Context, input []byte, op domain.Op) ([]Output, error)
}

// NormalizeFormat canonicalizes an extension or format name, so ".JPG", "jpg"
// and "jpeg" all map to jpeg. Unknown names return ErrUnsupportedFormat.
func NormalizeFormat(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), ".")))
	switch name {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "bmp":
		return FormatBMP, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}
