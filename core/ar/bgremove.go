package ar

import (
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"math"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// BackgroundThreshold is the RGB distance under which a pixel is considered background.
const BackgroundThreshold = 80.0

// RemoveBackground makes transparent every pixel close to the average colour of the four corners.
func RemoveBackground(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if b.Empty() {
		return out
	}

	var bgR, bgG, bgB float64
	for _, p := range []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - 1, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Max.Y - 1},
	} {
		c := color.NRGBAModel.Convert(img.At(p.X, p.Y)).(color.NRGBA)
		bgR += float64(c.R) / 4
		bgG += float64(c.G) / 4
		bgB += float64(c.B) / 4
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dr, dg, db := float64(c.R)-bgR, float64(c.G)-bgG, float64(c.B)-bgB
			if math.Sqrt(dr*dr+dg*dg+db*db) < BackgroundThreshold {
				c.A = 0
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// RemoveBackgroundPNG decodes any supported image from r and writes the cut-out as PNG to w.
func RemoveBackgroundPNG(r io.Reader, w io.Writer) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return errors.Wrap(err, "decoding image")
	}
	return errors.Wrap(png.Encode(w, RemoveBackground(img)), "encoding png")
}
