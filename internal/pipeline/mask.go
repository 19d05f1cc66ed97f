package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pixelheap/imgproc/internal/domain"
	"github.com/pixelheap/imgproc/internal/palette"
)

func resolveKey(img image.Image, op domain.Op) domain.ColorKey {
	if op.AutoKey {
		return palette.DetectBackground(img)
	}
	if op.Key != nil {
		return *op.Key
	}
	return domain.ColorKey{}
}

// maskToTransparent rewrites every pixel whose RGB matches key to fully
// transparent white, leaving all other pixels, their alpha included,
// untouched. With fuzz zero the match is exact integer equality; a positive
// fuzz admits pixels within that Lab-space distance of the key.
func maskToTransparent(src image.Image, key domain.ColorKey, fuzz float64) *image.NRGBA {
	img := imaging.Clone(src)

	var keyLab colorful.Color
	if fuzz > 0 {
		keyLab = key.Colorful()
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4 : x*4+4]
			if fuzz <= 0 {
				if px[0] == key.R && px[1] == key.G && px[2] == key.B {
					px[0], px[1], px[2], px[3] = 255, 255, 255, 0
				}
				continue
			}
			c := colorful.Color{
				R: float64(px[0]) / 255,
				G: float64(px[1]) / 255,
				B: float64(px[2]) / 255,
			}
			if c.DistanceLab(keyLab) <= fuzz {
				px[0], px[1], px[2], px[3] = 255, 255, 255, 0
			}
		}
	}
	return img
}
