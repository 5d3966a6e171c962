package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
)

func TestAssertHelpers_Pass(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, http.ErrServerClosed)
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodPost, "/api/recording/start")
	if req.Method != http.MethodPost || req.URL.Path != "/api/recording/start" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
}

func TestSquareFrame(t *testing.T) {
	size := l2frames.Size{Width: 100, Height: 80}
	f := SquareFrame(4, time.Unix(1, 0), size, Rect(10, 20, 40, 50))

	if f.Seq != 4 || f.Size() != size {
		t.Fatalf("unexpected frame %d %v", f.Seq, f.Size())
	}
	bright := 0
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			if r, _, _ := f.RGB(x, y); r == Bright.R {
				bright++
			}
		}
	}
	if want := 40 * 50; bright != want {
		t.Errorf("bright pixels = %d, want %d", bright, want)
	}
}

func TestFillRect_Clips(t *testing.T) {
	f := StaticFrame(1, time.Time{}, l2frames.Size{Width: 10, Height: 10})
	FillRect(f.Image, Rect(8, 8, 5, 5), Bright)
	if r, _, _ := f.RGB(9, 9); r != Bright.R {
		t.Error("corner pixel not filled")
	}
	if r, _, _ := f.RGB(7, 7); r != Background.R {
		t.Error("pixel outside rect filled")
	}
}
