package dedup

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/kozaktomas/photo-curator/internal/imaging"
)

// HighPassMean removes the low-frequency square of half-width size around the
// centre of the shifted 2-D spectrum, transforms back and returns the mean of
// 20*ln|residual| over all pixels. Sharp images keep a lot of energy outside
// the window and score high; blurry ones score low.
//
// The window is clamped to the spectrum, so images smaller than 2*size in a
// dimension lose every frequency along it.
func HighPassMean(g *imaging.Gray, size int) float64 {
	w, h := g.Width, g.Height
	if w == 0 || h == 0 {
		return math.Inf(-1)
	}

	data := make([]complex128, w*h)
	for i, v := range g.Pix {
		data[i] = complex(v, 0)
	}
	fft2(data, w, h, false)

	cx, cy := w/2, h/2
	for sy := max(cy-size, 0); sy < min(cy+size, h); sy++ {
		row := unshift(sy, h) * w
		for sx := max(cx-size, 0); sx < min(cx+size, w); sx++ {
			data[row+unshift(sx, w)] = 0
		}
	}

	fft2(data, w, h, true)

	// gonum's inverse transform is unnormalised.
	scale := 1 / float64(w*h)
	magnitude := make([]float64, len(data))
	for i, c := range data {
		magnitude[i] = 20 * math.Log(cmplx.Abs(c)*scale)
	}
	return stat.Mean(magnitude, nil)
}

// unshift maps an index of the centre-shifted spectrum back to the index of
// the unshifted one.
func unshift(k, n int) int {
	return (k - n/2 + n) % n
}

// fft2 transforms a row-major w x h matrix in place, rows first then columns.
func fft2(data []complex128, w, h int, inverse bool) {
	rowFFT := fourier.NewCmplxFFT(w)
	buf := make([]complex128, w)
	for y := range h {
		seg := data[y*w : (y+1)*w]
		if inverse {
			rowFFT.Sequence(buf, seg)
		} else {
			rowFFT.Coefficients(buf, seg)
		}
		copy(seg, buf)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := range w {
		for y := range h {
			col[y] = data[y*w+x]
		}
		if inverse {
			colFFT.Sequence(out, col)
		} else {
			colFFT.Coefficients(out, col)
		}
		for y := range h {
			data[y*w+x] = out[y]
		}
	}
}

// LaplacianVariance returns the population variance of the 3x3 Laplacian
// (4-neighbour kernel, reflect-101 borders) of g.
func LaplacianVariance(g *imaging.Gray) float64 {
	w, h := g.Width, g.Height
	if w == 0 || h == 0 {
		return 0
	}

	lap := make([]float64, w*h)
	for y := range h {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := range w {
			left, right := reflect101(x-1, w), reflect101(x+1, w)
			lap[y*w+x] = g.At(left, y) + g.At(right, y) + g.At(x, up) + g.At(x, down) - 4*g.At(x, y)
		}
	}

	_, variance := stat.PopMeanVariance(lap, nil)
	return variance
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}

// blurVerdict is the outcome of the two blur tests for one image.
type blurVerdict struct {
	Blurry    bool
	FFTMean   float64
	Laplacian float64
}

// checkBlur runs the frequency test and, only if it passes, the Laplacian test.
func checkBlur(g *imaging.Gray, opts Options) blurVerdict {
	v := blurVerdict{FFTMean: HighPassMean(g, opts.FFTSize)}
	if v.FFTMean <= opts.FFTThreshold {
		v.Blurry = true
		return v
	}
	v.Laplacian = LaplacianVariance(g)
	v.Blurry = v.Laplacian < opts.LaplacianThreshold
	return v
}
