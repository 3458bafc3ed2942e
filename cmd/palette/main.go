// Dev tool: extract the color palette from a local image file, the
// same way the artwork loader does for album covers.
package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/cmarret/tideline/internal/artwork"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <image-file>", os.Args[0])
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open image: %v", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		log.Fatalf("decode image: %v", err)
	}

	p := artwork.ExtractPalette(img)
	fmt.Printf("%s %dx%d\n", format, img.Bounds().Dx(), img.Bounds().Dy())
	fmt.Printf("dominant  %s\n", p.Dominant)
	fmt.Printf("accent    %s\n", p.Accent)
	for _, s := range p.Swatches {
		fmt.Printf("  %s  %d px\n", s.Hex, s.Population)
	}
}
