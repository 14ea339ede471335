// Package imaging decodes photos into 8-bit luma matrices used by the
// blur and duplicate filters.
package imaging

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Gray is a row-major grayscale image with values in [0, 255].
type Gray struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGray allocates a black w x h image.
func NewGray(w, h int) *Gray {
	return &Gray{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// At returns the value at column x, row y.
func (g *Gray) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// Set stores v at column x, row y.
func (g *Gray) Set(x, y int, v float64) {
	g.Pix[y*g.Width+x] = v
}

var supportedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile checks if a file has a supported image extension.
func IsImageFile(name string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(name))]
}

// Decode reads and decodes the image at path.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// LoadGray decodes the image at path at full resolution as grayscale.
func LoadGray(path string) (*Gray, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// LoadGrayResized decodes the image at path and scales it to exactly w x h.
func LoadGrayResized(path string, w, h int) (*Gray, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return ToGray(Resize(img, w, h)), nil
}

// Resize scales an image to the specified dimensions using bilinear interpolation.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// ToGray converts an image to rounded 8-bit luma values.
func ToGray(img image.Image) *Gray {
	b := img.Bounds()
	g := NewGray(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := range g.Height {
			row := src.Pix[y*src.Stride : y*src.Stride+g.Width]
			for x, v := range row {
				g.Pix[y*g.Width+x] = float64(v)
			}
		}
	case *image.YCbCr:
		// JPEG luma is already ITU-R BT.601.
		for y := range g.Height {
			for x := range g.Width {
				g.Pix[y*g.Width+x] = float64(src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)])
			}
		}
	default:
		for y := range g.Height {
			for x := range g.Width {
				r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// ITU-R BT.601 luma formula.
				luma := 0.299*float64(r>>8) + 0.587*float64(gg>>8) + 0.114*float64(bb>>8)
				g.Pix[y*g.Width+x] = math.Round(luma)
			}
		}
	}
	return g
}
