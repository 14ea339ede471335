package dedup

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kozaktomas/photo-curator/internal/imaging"
)

// canvas is a fixed-size 8-bit grayscale rendition of one image, prepared for
// pairwise comparison. Only the quantised pixels are kept per survivor; the
// mean and the norm of the mean-centred pixels are computed once.
type canvas struct {
	name string
	pix  []uint8
	mean float64
	norm float64 // L2 norm of pix minus mean
}

func newCanvas(name string, g *imaging.Gray) canvas {
	pix := make([]uint8, len(g.Pix))
	var sum float64
	for i, v := range g.Pix {
		pix[i] = uint8(min(max(math.Round(v), 0), 255))
		sum += float64(pix[i])
	}

	c := canvas{name: name, pix: pix}
	if len(pix) == 0 {
		return c
	}
	c.mean = sum / float64(len(pix))
	var sq float64
	for _, v := range pix {
		d := float64(v) - c.mean
		sq += d * d
	}
	c.norm = math.Sqrt(sq)
	return c
}

// NCC returns the normalized cross-correlation of two equally sized images,
// which for a template the size of the image is the single value of
// coefficient-normalised template matching. A constant image correlates 0
// with everything.
func NCC(a, b *imaging.Gray) float64 {
	if len(a.Pix) == 0 || stat.StdDev(a.Pix, nil) == 0 || stat.StdDev(b.Pix, nil) == 0 {
		return 0
	}
	return stat.Correlation(a.Pix, b.Pix, nil)
}

func nccScore(a, b canvas) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for i, v := range a.pix {
		dot += (float64(v) - a.mean) * (float64(b.pix[i]) - b.mean)
	}
	return dot / (a.norm * b.norm)
}

// MSE returns the mean squared pixel difference of two equally sized images.
func MSE(a, b *imaging.Gray) float64 {
	if len(a.Pix) == 0 {
		return 0
	}
	d := floats.Distance(a.Pix, b.Pix, 2)
	return d * d / float64(len(a.Pix))
}

func mseScore(a, b canvas) float64 {
	if len(a.pix) == 0 {
		return 0
	}
	var sum int64
	for i, v := range a.pix {
		d := int64(v) - int64(b.pix[i])
		sum += d * d
	}
	return float64(sum) / float64(len(a.pix))
}
