package dedup

import (
	"image"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/photo-curator/internal/imaging"
)

// noiseImage returns a w x h image of uniform 8-bit noise.
func noiseImage(w, h int, seed uint64) *imaging.Gray {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := imaging.NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = float64(rng.IntN(256))
	}
	return g
}

// lowContrastImage returns mid-gray with a small amount of noise.
func lowContrastImage(w, h int, seed uint64, spread int) *imaging.Gray {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	g := imaging.NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = float64(128 - spread + rng.IntN(2*spread+1))
	}
	return g
}

// boxBlur applies passes of a (2r+1)-wide box filter with clamped borders and
// rounds the result back to 8-bit values.
func boxBlur(src *imaging.Gray, r, passes int) *imaging.Gray {
	w, h := src.Width, src.Height
	cur := &imaging.Gray{Width: w, Height: h, Pix: append([]float64(nil), src.Pix...)}
	tmp := imaging.NewGray(w, h)
	clamp := func(v, n int) int { return min(max(v, 0), n-1) }

	for range passes {
		for y := range h {
			for x := range w {
				var sum float64
				for k := -r; k <= r; k++ {
					sum += cur.At(clamp(x+k, w), y)
				}
				tmp.Set(x, y, sum/float64(2*r+1))
			}
		}
		for y := range h {
			for x := range w {
				var sum float64
				for k := -r; k <= r; k++ {
					sum += tmp.At(x, clamp(y+k, h))
				}
				cur.Set(x, y, sum/float64(2*r+1))
			}
		}
	}
	for i, v := range cur.Pix {
		cur.Pix[i] = math.Round(v)
	}
	return cur
}

func toImage(g *imaging.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for i, v := range g.Pix {
		img.Pix[i] = uint8(min(max(v, 0), 255))
	}
	return img
}

func writeGrayPNG(t *testing.T, dir, name string, g *imaging.Gray) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, toImage(g)); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
		t.Fatal(err)
	}
}

func remainingFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
