// Package palette extracts dominant colors from images. The identify command
// uses it for palette reports and convert uses it to guess a background key.
package palette

import (
	"fmt"
	"image"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/pixelheap/imgproc/internal/domain"
)

type Method int

const (
	MethodDominant Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dominantcolor", "dominant":
		return MethodDominant, nil
	case "kmeans":
		return MethodKMeans, nil
	default:
		return 0, fmt.Errorf("unknown palette method %q (want dominantcolor or kmeans)", s)
	}
}

type weightedColor struct {
	col    colorful.Color
	weight float64
}

// DetectBackground returns the image's dominant color. For sprites and other
// images with a majority solid backdrop this is the background key.
func DetectBackground(img image.Image) domain.ColorKey {
	c := dominantcolor.Find(img)
	return domain.ColorKey{R: c.R, G: c.G, B: c.B}
}

// Extract returns up to k palette colors ordered from most to least
// prominent. A k of zero or less yields nil.
func Extract(img image.Image, k int, method Method) []colorful.Color {
	switch method {
	case MethodKMeans:
		if p := extractKMeans(img, k); len(p) != 0 {
			return p
		}
		// kmeans can come back empty on degenerate inputs.
		return extractDominant(img, k)
	default:
		return extractDominant(img, k)
	}
}

func extractDominant(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}

	nCandidates := max(16, k*4)
	candidates := dominantcolor.FindWeight(img, nCandidates)
	if len(candidates) == 0 {
		return nil
	}

	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		w := c.Weight
		if w <= 0 {
			w = 1e-6
		}
		weighted = append(weighted, weightedColor{col: col.Clamped(), weight: w})
	}
	return takeDistinct(weighted, k)
}

func extractKMeans(img image.Image, k int) []colorful.Color {
	if k <= 0 {
		return nil
	}

	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Subsample to keep kmeans tractable on large images.
	const maxSamples = 12000
	step := 1
	if width*height > maxSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	workK := min(max(k*2, k+1), len(dataset))
	km := kmeans.New()
	cc, err := km.Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	// Largest clusters first so the most common colors win.
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{col: col, weight: float64(len(c.Observations))})
	}
	return takeDistinct(weighted, k)
}

// takeDistinct keeps the k heaviest candidates, skipping colors that sit too
// close in Lab space to one already picked.
func takeDistinct(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	slices.SortFunc(cands, func(a, b weightedColor) int {
		if a.weight > b.weight {
			return -1
		}
		if a.weight < b.weight {
			return 1
		}
		return 0
	})

	const minSeparation = 0.04
	out := make([]colorful.Color, 0, k)
	for _, cand := range cands {
		distinct := true
		for _, picked := range out {
			if cand.col.DistanceLab(picked) < minSeparation {
				distinct = false
				break
			}
		}
		if distinct {
			out = append(out, cand.col)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

// SortByBrightness orders colors from darkest to brightest in place.
func SortByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ya := luminance(a)
		yb := luminance(b)
		if ya < yb {
			return -1
		}
		if ya > yb {
			return 1
		}
		return 0
	})
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}
