// Package annotate decodes frames, crops face regions and draws detection
// overlays for the processed stream sent back to clients.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"moodcam/internal/detection"
)

// jpegQuality is used for all re-encoded frames.
const jpegQuality = 85

// faceBoxColor marks the selected face region.
var faceBoxColor = color.RGBA{255, 0, 0, 255}

// Decode parses encoded frame bytes (JPEG or PNG) into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// CropFace extracts the face region from a decoded frame, clamped to the
// image bounds, and returns it re-encoded as JPEG for the classifier.
func CropFace(img image.Image, box detection.Box) ([]byte, error) {
	bounds := img.Bounds()

	x1 := max(box.X, bounds.Min.X)
	y1 := max(box.Y, bounds.Min.Y)
	x2 := min(box.X+box.Width, bounds.Max.X)
	y2 := min(box.Y+box.Height, bounds.Max.Y)

	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("face box %+v outside frame bounds %v", box, bounds)
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Draw(crop, crop.Bounds(), img, image.Pt(x1, y1), draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}

// DrawFaceBox renders the face bounding box and the smoothed label onto a
// copy of the frame and returns it encoded as JPEG.
func DrawFaceBox(img image.Image, box detection.Box, label string) ([]byte, error) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	drawBox(rgba, box.X, box.Y, box.Width, box.Height, faceBoxColor, 2)
	if label != "" {
		drawLabel(rgba, box.X, box.Y-5, label, faceBoxColor)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox draws a rectangle outline on the image.
func drawBox(img *image.RGBA, x, y, w, h int, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		// Top and bottom edges
		for i := x; i < x+w && i < bounds.Max.X; i++ {
			if i < 0 {
				continue
			}
			if y+t >= 0 && y+t < bounds.Max.Y {
				img.Set(i, y+t, c)
			}
			if y+h-t >= 0 && y+h-t < bounds.Max.Y {
				img.Set(i, y+h-t, c)
			}
		}
		// Left and right edges
		for j := y; j < y+h && j < bounds.Max.Y; j++ {
			if j < 0 {
				continue
			}
			if x+t >= 0 && x+t < bounds.Max.X {
				img.Set(x+t, j, c)
			}
			if x+w-t >= 0 && x+w-t < bounds.Max.X {
				img.Set(x+w-t, j, c)
			}
		}
	}
}

// drawLabel draws text with a dark background strip.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}

	bgColor := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < img.Bounds().Max.X && py >= 0 && py < img.Bounds().Max.Y {
				img.Set(px, py, bgColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
