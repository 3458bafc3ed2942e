package artwork

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func twoToneImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	red := color.RGBA{R: 200, G: 30, B: 30, A: 255}
	blue := color.RGBA{R: 30, G: 60, B: 200, A: 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 70 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}
	return img
}

func TestExtractPalette_TwoToneImage(t *testing.T) {
	p := ExtractPalette(twoToneImage())

	if len(p.Swatches) == 0 || len(p.Swatches) > maxSwatches {
		t.Fatalf("len(Swatches) = %d, want 1..%d", len(p.Swatches), maxSwatches)
	}

	dom, err := colorful.Hex(p.Dominant)
	if err != nil {
		t.Fatalf("Dominant %q is not a hex color: %v", p.Dominant, err)
	}
	if dom.R <= dom.B {
		t.Errorf("Dominant = %s, want the red side of the image", p.Dominant)
	}

	acc, err := colorful.Hex(p.Accent)
	if err != nil {
		t.Fatalf("Accent %q is not a hex color: %v", p.Accent, err)
	}
	if acc.B <= acc.R {
		t.Errorf("Accent = %s, want the blue side of the image", p.Accent)
	}

	if p.Swatches[0].Hex != p.Dominant {
		t.Errorf("Swatches[0] = %s, want the dominant color %s", p.Swatches[0].Hex, p.Dominant)
	}
	for i := 1; i < len(p.Swatches); i++ {
		if p.Swatches[i].Population > p.Swatches[i-1].Population {
			t.Errorf("swatches not sorted by population: %v", p.Swatches)
		}
	}
}

func TestExtractPalette_SolidColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 180, B: 90, A: 255})
		}
	}

	p := ExtractPalette(img)

	if len(p.Swatches) != 1 {
		t.Fatalf("len(Swatches) = %d, want 1 for a solid image", len(p.Swatches))
	}
	if p.Accent != p.Dominant {
		t.Errorf("Accent = %s, want fallback to Dominant %s", p.Accent, p.Dominant)
	}
	dom, err := colorful.Hex(p.Dominant)
	if err != nil {
		t.Fatalf("Dominant %q is not a hex color: %v", p.Dominant, err)
	}
	if dom.G <= dom.R || dom.G <= dom.B {
		t.Errorf("Dominant = %s, want green", p.Dominant)
	}
}

func TestExtractPalette_TransparentImage(t *testing.T) {
	// A zeroed RGBA image is fully transparent; nothing to sample.
	p := ExtractPalette(image.NewRGBA(image.Rect(0, 0, 16, 16)))

	if len(p.Swatches) != 0 {
		t.Errorf("len(Swatches) = %d, want 0", len(p.Swatches))
	}
	if p.Dominant != "" || p.Accent != "" {
		t.Errorf("palette = %+v, want empty", p)
	}
}
