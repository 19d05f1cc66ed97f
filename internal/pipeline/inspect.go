package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Info summarizes a decoded image for the identify command.
type Info struct {
	Format     string
	Width      int
	Height     int
	Megapixels float64
	HasAlpha   bool
	Channels   ChannelStats
}

// ChannelStats holds per-channel mean and standard deviation over the 8-bit
// RGB raster, plus the mean Rec. 709 luma.
type ChannelStats struct {
	MeanR, MeanG, MeanB float64
	StdR, StdG, StdB    float64
	MeanLuma            float64
}

// Inspect decodes data and computes basic statistics. Images beyond 64k
// pixels are subsampled, so the statistics are estimates rather than exact
// full-raster sums.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return Info{
		Format:     format,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Megapixels: float64(cfg.Width) * float64(cfg.Height) / 1e6,
		HasAlpha:   hasAlpha(img),
		Channels:   channelStats(img),
	}, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func channelStats(img image.Image) ChannelStats {
	bounds := img.Bounds()

	const maxSamples = 65536
	step := 1
	if n := bounds.Dx() * bounds.Dy(); n > maxSamples {
		step = int(math.Sqrt(float64(n)/float64(maxSamples))) + 1
	}

	var rs, gs, bs, lum []float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := float64(r16 >> 8)
			g := float64(g16 >> 8)
			b := float64(b16 >> 8)
			rs = append(rs, r)
			gs = append(gs, g)
			bs = append(bs, b)
			lum = append(lum, 0.2126*r+0.7152*g+0.0722*b)
		}
	}
	if len(rs) == 0 {
		return ChannelStats{}
	}

	stats := ChannelStats{
		MeanR:    stat.Mean(rs, nil),
		MeanG:    stat.Mean(gs, nil),
		MeanB:    stat.Mean(bs, nil),
		MeanLuma: stat.Mean(lum, nil),
	}
	if len(rs) > 1 {
		stats.StdR = stat.StdDev(rs, nil)
		stats.StdG = stat.StdDev(gs, nil)
		stats.StdB = stat.StdDev(bs, nil)
	}
	return stats
}
