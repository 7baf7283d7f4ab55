//go:build ignore

// gen_fixtures creates small test images for manual smoke runs.
// Sizes are deliberately not multiples of common factors so edge padding
// is exercised.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "cards"), 0o755)

	// Banner (JPEG, 403x227)
	writeJPEG(filepath.Join(dir, "banner.jpg"), gradient(403, 227))

	// Cards (PNG, 201x151 each)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("card-%d.png", i)
		writePNG(filepath.Join(dir, "cards", name), solidWithBorder(201, 151, uint8(i*60)))
	}

	// Gray checkerboard (PNG, 257x129) and its PGM twin
	checker := checkerboard(257, 129, 3)
	writePNG(filepath.Join(dir, "checker.png"), checker)
	writePNM(filepath.Join(dir, "checker.pgm"), checker.Pix, 257, 129, 1)

	// Color PPM (10x10, reduces to 3x3 at factor 4)
	rgb := gradient(10, 10)
	writePNM(filepath.Join(dir, "tiny.ppm"), dropAlpha(rgb), 10, 10, 3)

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 7 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func checkerboard(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func dropAlpha(img *image.NRGBA) []byte {
	out := make([]byte, 0, len(img.Pix)/4*3)
	for i := 0; i < len(img.Pix); i += 4 {
		out = append(out, img.Pix[i], img.Pix[i+1], img.Pix[i+2])
	}
	return out
}

func writePNG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		panic(err)
	}
}

func writePNM(path string, pix []byte, w, h, channels int) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	magic := 5
	if channels == 3 {
		magic = 6
	}
	fmt.Fprintf(f, "P%d\n%d %d\n255\n", magic, w, h)
	if _, err := f.Write(pix); err != nil {
		panic(err)
	}
}
