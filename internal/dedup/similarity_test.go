package dedup

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/imaging"
)

func shifted(g *imaging.Gray, delta float64) *imaging.Gray {
	out := imaging.NewGray(g.Width, g.Height)
	for i, v := range g.Pix {
		out.Pix[i] = v + delta
	}
	return out
}

func TestNCC(t *testing.T) {
	a := noiseImage(64, 32, 10)
	inverted := imaging.NewGray(a.Width, a.Height)
	for i, v := range a.Pix {
		inverted.Pix[i] = 255 - v
	}
	constant := imaging.NewGray(a.Width, a.Height)
	for i := range constant.Pix {
		constant.Pix[i] = 42
	}

	tests := []struct {
		name string
		b    *imaging.Gray
		want float64
		tol  float64
	}{
		{"identical", a, 1, 1e-9},
		{"brightness shift", shifted(a, 3), 1, 1e-9},
		{"inverted", inverted, -1, 1e-9},
		{"constant", constant, 0, 0},
		{"unrelated noise", noiseImage(64, 32, 11), 0, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NCC(a, tc.b)
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("NCC = %f, want %f (±%g)", got, tc.want, tc.tol)
			}
		})
	}
}

func TestMSE(t *testing.T) {
	a := noiseImage(64, 32, 20)

	tests := []struct {
		name string
		b    *imaging.Gray
		want float64
	}{
		{"identical", a, 0},
		{"shift by 3", shifted(a, 3), 9},
		{"shift by -7", shifted(a, -7), 49},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MSE(a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("MSE = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestMSE_IsSymmetric(t *testing.T) {
	a := noiseImage(32, 32, 1)
	b := noiseImage(32, 32, 2)
	if ab, ba := MSE(a, b), MSE(b, a); math.Abs(ab-ba) > 1e-9 {
		t.Errorf("MSE not symmetric: %f vs %f", ab, ba)
	}
}

func TestCanvasScoresMatchFloatScores(t *testing.T) {
	a := noiseImage(constants.CompareWidth, constants.CompareHeight, 30)
	b := boxBlur(a, 1, 1)
	flat := imaging.NewGray(a.Width, a.Height)
	for i := range flat.Pix {
		flat.Pix[i] = 77
	}

	pairs := []struct {
		name string
		x, y *imaging.Gray
	}{
		{"noise vs blurred", a, b},
		{"noise vs unrelated", a, noiseImage(a.Width, a.Height, 31)},
		{"noise vs flat", a, flat},
		{"identical", a, a},
	}

	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			cx, cy := newCanvas("x", tc.x), newCanvas("y", tc.y)
			if got, want := nccScore(cx, cy), NCC(tc.x, tc.y); math.Abs(got-want) > 1e-9 {
				t.Errorf("nccScore = %f, NCC = %f", got, want)
			}
			if got, want := mseScore(cx, cy), MSE(tc.x, tc.y); math.Abs(got-want) > 1e-9 {
				t.Errorf("mseScore = %f, MSE = %f", got, want)
			}
		})
	}
}

func TestNewCanvas_StoresEightBitPixels(t *testing.T) {
	g := imaging.NewGray(4, 1)
	copy(g.Pix, []float64{-3, 12.4, 12.6, 300})

	c := newCanvas("x", g)
	if diff := cmp.Diff([]uint8{0, 12, 13, 255}, c.pix); diff != "" {
		t.Errorf("pix mismatch (-want +got):\n%s", diff)
	}
	if want := (0.0 + 12 + 13 + 255) / 4; c.mean != want {
		t.Errorf("mean = %f, want %f", c.mean, want)
	}
}
