// Package artwork derives display palettes from cover images.
package artwork

import (
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
)

const (
	// sampleSize bounds the image before sampling; palette quality
	// barely changes past 64px while cost grows quadratically.
	sampleSize = 64

	maxSwatches = 5

	// binDistance is the Lab distance under which two pixels share a
	// swatch bin.
	binDistance = 0.2
)

// Swatch is one clustered color and how many samples landed in it.
type Swatch struct {
	Hex        string
	Population int
}

// Palette holds the colors extracted from a cover image.
type Palette struct {
	// Dominant is the most populous swatch.
	Dominant string
	// Accent is the swatch furthest from the dominant color, which
	// makes it usable as a contrast color. Falls back to Dominant for
	// single-color images.
	Accent   string
	Swatches []Swatch
}

type bin struct {
	center  colorful.Color
	r, g, b float64
	count   int
}

// ExtractPalette clusters the image's pixels into up to five swatches
// and returns the dominant and accent colors as hex strings.
func ExtractPalette(img image.Image) Palette {
	small := resize.Thumbnail(sampleSize, sampleSize, img, resize.Lanczos3)

	var bins []*bin
	bounds := small.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c, ok := colorful.MakeColor(small.At(x, y))
			if !ok {
				// Fully transparent pixel, nothing to sample.
				continue
			}
			assign(&bins, c)
		}
	}

	if len(bins) == 0 {
		return Palette{}
	}

	sort.Slice(bins, func(i, j int) bool { return bins[i].count > bins[j].count })
	if len(bins) > maxSwatches {
		bins = bins[:maxSwatches]
	}

	p := Palette{Swatches: make([]Swatch, len(bins))}
	for i, b := range bins {
		p.Swatches[i] = Swatch{Hex: b.center.Hex(), Population: b.count}
	}

	dominant := bins[0]
	p.Dominant = dominant.center.Hex()
	p.Accent = p.Dominant

	best := 0.0
	for _, b := range bins[1:] {
		if d := dominant.center.DistanceLab(b.center); d > best {
			best = d
			p.Accent = b.center.Hex()
		}
	}
	return p
}

// assign adds the color to the nearest bin, or opens a new one when
// nothing is within binDistance.
func assign(bins *[]*bin, c colorful.Color) {
	for _, b := range *bins {
		if b.center.DistanceLab(c) < binDistance {
			b.r += c.R
			b.g += c.G
			b.b += c.B
			b.count++
			b.center = colorful.Color{
				R: b.r / float64(b.count),
				G: b.g / float64(b.count),
				B: b.b / float64(b.count),
			}
			return
		}
	}
	*bins = append(*bins, &bin{center: c, r: c.R, g: c.G, b: c.B, count: 1})
}
