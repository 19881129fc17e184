package stitch

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
)

// DecodeTiles decodes the PNG tiles at the given paths, in order.
func DecodeTiles(paths []string) ([]image.Image, error) {
	if len(paths) == 0 {
		return nil, &Error{Message: "no tiles to stitch"}
	}
	tiles := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("read tile %s", p), Cause: err}
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("decode tile %s", p), Cause: err}
		}
		tiles = append(tiles, img)
	}
	return tiles, nil
}

// ComposeFiles stitches the PNG tiles at the given paths and writes the
// result to outPath.
func ComposeFiles(paths []string, outPath string, spec Spec) error {
	tiles, err := DecodeTiles(paths)
	if err != nil {
		return err
	}
	composed, err := Compose(tiles, spec)
	if err != nil {
		return err
	}
	return WritePNG(outPath, composed)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// NormalizeWidth scales img proportionally to the given width with
// Catmull-Rom interpolation. Captures taken with a device scale factor above
// 1 come back wider than the CSS viewport; this brings them back before
// composition.
func NormalizeWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() == width || width <= 0 || b.Dx() == 0 {
		return img
	}
	h := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
