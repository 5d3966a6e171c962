// Package testutil provides shared test utilities and fixtures.
//
// It centralises HTTP assertions and synthetic frame builders used across
// the detector's package tests.
package testutil

import (
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/disintegration/imaging"
)

// Scene colours used by the fixtures.
var (
	Background = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	Bright     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// StaticFrame returns a uniform Background frame.
func StaticFrame(seq uint64, at time.Time, size l2frames.Size) *l2frames.Frame {
	return l2frames.NewFrame(seq, at, imaging.New(size.Width, size.Height, Background))
}

// SquareFrame returns a Background frame with rect filled Bright.
func SquareFrame(seq uint64, at time.Time, size l2frames.Size, rect image.Rectangle) *l2frames.Frame {
	f := StaticFrame(seq, at, size)
	FillRect(f.Image, rect, Bright)
	return f
}

// FillRect paints rect (clipped to the image) with c.
func FillRect(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	r := rect.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// Rect returns a w×h rectangle with its top-left corner at (x, y).
func Rect(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
