package detection

import (
	"context"
	"errors"

	"moodcam/internal/emotion"
)

var (
	// ErrServiceUnavailable indicates the recognition service failed its
	// health check or is disabled.
	ErrServiceUnavailable = errors.New("recognition service unavailable")

	// ErrDegenerateCrop indicates a face crop too small to classify.
	ErrDegenerateCrop = errors.New("face crop too small to classify")
)

// Box is a face bounding box in source-image pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in pixels.
func (b Box) Area() int {
	return b.Width * b.Height
}

// FaceLocator finds face bounding boxes in an encoded image. It may return
// zero, one, or many boxes; zero boxes is not an error.
type FaceLocator interface {
	LocateFaces(ctx context.Context, image []byte) ([]Box, error)
}

// EmotionClassifier assigns an emotion label to a cropped face image.
type EmotionClassifier interface {
	Classify(ctx context.Context, faceCrop []byte) (emotion.Label, error)
}

// Largest returns the box with the greatest area, breaking ties in favor
// of the first-encountered box. The second return value is false when the
// slice is empty. Largest-face priority keeps background faces from
// corrupting the emotion signal.
func Largest(boxes []Box) (Box, bool) {
	if len(boxes) == 0 {
		return Box{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Area() > best.Area() {
			best = b
		}
	}
	return best, true
}
