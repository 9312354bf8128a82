package ar

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestRemoveBackgroundUniform(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 9))
	fill(img, color.NRGBA{R: 200, G: 30, B: 90, A: 255})

	out := RemoveBackground(img)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if a := out.NRGBAAt(x, y).A; a != 0 {
				t.Fatalf("pixel (%d,%d) alpha = %d, want 0", x, y, a)
			}
		}
	}
}

func TestRemoveBackgroundKeepsSubject(t *testing.T) {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	fill(img, white)

	subject := image.Rect(3, 3, 7, 7)
	for y := subject.Min.Y; y < subject.Max.Y; y++ {
		for x := subject.Min.X; x < subject.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	// near-white noise is still background
	img.SetNRGBA(1, 1, color.NRGBA{R: 230, G: 240, B: 235, A: 255})

	out := RemoveBackground(img)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 1).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(5, 5).A)
	assert.Equal(t, uint8(20), out.NRGBAAt(5, 5).R)
}

func TestRemoveBackgroundPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	fill(img, color.NRGBA{R: 10, G: 200, B: 10, A: 255})
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, img))

	var out bytes.Buffer
	require.NoError(t, RemoveBackgroundPNG(&in, &out))

	decoded, format, err := image.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	_, _, _, a := decoded.At(2, 2).RGBA()
	assert.Equal(t, uint32(0), a)

	assert.Error(t, RemoveBackgroundPNG(bytes.NewBufferString("not an image"), &out))
}

func TestNewSceneDefaults(t *testing.T) {
	tests := []struct {
		shape string
		want  NewScene
	}{
		{shape: "", want: NewScene{Shape: ShapePlane, Width: 1, Height: 0.6}},
		{shape: ShapeBox, want: NewScene{Shape: ShapeBox, Width: 1, Height: 0.6, Depth: 0.2}},
		{shape: ShapeCylinder, want: NewScene{Shape: ShapeCylinder, Width: 1, Height: 0.6, Radius: 0.7, Theta: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Shape, func(t *testing.T) {
			ns := NewScene{Shape: tt.shape}
			if ns.Shape == "" {
				ns.Shape = ShapePlane
			}
			ns.applyDefaults()
			assert.Equal(t, tt.want, ns)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindImage, KindOf("blind.JPG"))
	assert.Equal(t, KindImage, KindOf("blind.webp"))
	assert.Equal(t, KindModel, KindOf("roller.glb"))
	assert.Equal(t, KindModel, KindOf("scene.max"))
	assert.Equal(t, "", KindOf("notes.txt"))
	assert.Equal(t, "", KindOf("noext"))
}
