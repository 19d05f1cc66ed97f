package domain

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	OpConvert = "convert"
	OpTile    = "tile"
)

var (
	ErrInvalidColorKey = errors.New("invalid color key")
	ErrInvalidTileSpec = errors.New("invalid tile size")
	ErrInvalidOp       = errors.New("invalid operation")
)

// ColorKey is the RGB triple treated as background during masking. The zero
// value is black, the default key.
type ColorKey struct {
	R, G, B uint8
}

// ParseColorKey accepts a decimal "R,G,B" triple or a "#rrggbb" hex string.
func ParseColorKey(s string) (ColorKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ColorKey{}, fmt.Errorf("%w: empty value", ErrInvalidColorKey)
	}
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(strings.ToLower(s))
		if err != nil {
			return ColorKey{}, fmt.Errorf("%w: %q", ErrInvalidColorKey, s)
		}
		r, g, b := c.RGB255()
		return ColorKey{R: r, G: g, B: b}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return ColorKey{}, fmt.Errorf("%w: %q must have exactly three components", ErrInvalidColorKey, s)
	}
	var channels [3]uint8
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return ColorKey{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidColorKey, strings.TrimSpace(part))
		}
		if v < 0 || v > 255 {
			return ColorKey{}, fmt.Errorf("%w: component %d out of range 0-255", ErrInvalidColorKey, v)
		}
		channels[i] = uint8(v)
	}
	return ColorKey{R: channels[0], G: channels[1], B: channels[2]}, nil
}

func (k ColorKey) String() string {
	return fmt.Sprintf("%d,%d,%d", k.R, k.G, k.B)
}

func (k ColorKey) NRGBA() color.NRGBA {
	return color.NRGBA{R: k.R, G: k.G, B: k.B, A: 255}
}

// Colorful returns the key as a go-colorful color for Lab-space distance
// checks when fuzzy matching is enabled.
func (k ColorKey) Colorful() colorful.Color {
	return colorful.Color{
		R: float64(k.R) / 255,
		G: float64(k.G) / 255,
		B: float64(k.B) / 255,
	}
}

// TileSpec is the nominal size of one tile in a grid partition. Edge tiles
// may come out smaller; they are truncated at the image border, never padded.
type TileSpec struct {
	Width  int
	Height int
}

// ParseTileSpec accepts a "W,H" pair of positive integers.
func ParseTileSpec(s string) (TileSpec, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return TileSpec{}, fmt.Errorf("%w: %q must have exactly two components", ErrInvalidTileSpec, s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return TileSpec{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidTileSpec, strings.TrimSpace(parts[0]))
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return TileSpec{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidTileSpec, strings.TrimSpace(parts[1]))
	}
	spec := TileSpec{Width: w, Height: h}
	if err := spec.Validate(); err != nil {
		return TileSpec{}, err
	}
	return spec, nil
}

func (t TileSpec) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d,%d", ErrInvalidTileSpec, t.Width, t.Height)
	}
	return nil
}

func (t TileSpec) String() string {
	return fmt.Sprintf("%d,%d", t.Width, t.Height)
}

// GridSize reports how many columns and rows the spec carves out of an image,
// counting truncated edge tiles. Every source pixel lands in exactly one tile.
func (t TileSpec) GridSize(imageWidth, imageHeight int) (cols, rows int) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return 0, 0
	}
	cols = (imageWidth + t.Width - 1) / t.Width
	rows = (imageHeight + t.Height - 1) / t.Height
	return cols, rows
}

// Op describes one pipeline operation over a single input image.
type Op struct {
	Kind     string
	Format   string // canonical format name, see pipeline.NormalizeFormat
	Ext      string // output file extension, including the dot
	Quality  int    // jpeg quality, 0 means encoder default
	RemoveBG bool
	Key      *ColorKey // nil with AutoKey unset means the default black key
	AutoKey  bool      // detect the key from the image's dominant color
	Fuzz     float64   // Lab distance threshold, 0 means exact match
	Tile     *TileSpec
	BaseName string // output file stem
}

func (o Op) Validate() error {
	switch o.Kind {
	case OpConvert:
		if o.Tile != nil {
			return fmt.Errorf("%w: convert does not take a tile size", ErrInvalidOp)
		}
	case OpTile:
		if o.Tile == nil {
			return fmt.Errorf("%w: tile requires a tile size", ErrInvalidOp)
		}
		if err := o.Tile.Validate(); err != nil {
			return err
		}
		if o.RemoveBG {
			return fmt.Errorf("%w: tile does not support background removal", ErrInvalidOp)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOp, o.Kind)
	}
	if strings.TrimSpace(o.BaseName) == "" {
		return fmt.Errorf("%w: output base name is required", ErrInvalidOp)
	}
	if strings.TrimSpace(o.Format) == "" {
		return fmt.Errorf("%w: output format is required", ErrInvalidOp)
	}
	if !strings.HasPrefix(o.Ext, ".") {
		return fmt.Errorf("%w: output extension must start with a dot", ErrInvalidOp)
	}
	if o.Fuzz < 0 {
		return fmt.Errorf("%w: fuzz must not be negative", ErrInvalidOp)
	}
	return nil
}
