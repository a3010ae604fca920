// Package thumbnail renders a fixed-size JPEG preview from a page's
// source image, for the four sizes named in §6's thumbnail query
// parameter.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Size is one of the closed set of thumbnail dimensions.
type Size string

const (
	SizeIcon   Size = "icon"
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Dimensions maps each Size to its target bounding box. The source
// aspect ratio is preserved; the image is scaled to fit inside the box.
var Dimensions = map[Size]int{
	SizeIcon:   64,
	SizeSmall:  128,
	SizeMedium: 256,
	SizeLarge:  512,
}

// ValidSize reports whether s is a member of the closed enumeration.
func ValidSize(s Size) bool {
	_, ok := Dimensions[s]
	return ok
}

const jpegQuality = 85

// Generate decodes src (PNG, JPEG, GIF or a pdfcpu-rendered page
// image) and scales it to fit within size's bounding box, returning a
// JPEG-encoded thumbnail.
func Generate(src []byte, size Size) ([]byte, error) {
	box, ok := Dimensions[size]
	if !ok {
		return nil, fmt.Errorf("unknown thumbnail size %q", size)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	scale := float64(box) / float64(w)
	if hScale := float64(box) / float64(h); hScale < scale {
		scale = hScale
	}
	dstW, dstH := int(float64(w)*scale), int(float64(h)*scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Key builds the canonical cache key for a page's thumbnail at size,
// under the archive's .thumbnails directory (§6 Persisted state layout).
func Key(pageID string, size Size) string {
	return fmt.Sprintf(".thumbnails/%s/%s.jpg", size, pageID)
}
