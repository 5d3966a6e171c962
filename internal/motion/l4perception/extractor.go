package l4perception

import (
	"fmt"
	"image"
	"sort"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/samber/lo"
)

// Region is one connected foreground component.
type Region struct {
	Box  image.Rectangle `json:"box"`
	Area int             `json:"area"` // foreground pixel count
}

// ExtractParams configures an Extractor.
type ExtractParams struct {
	// Cutoff: only mask values strictly above it count as foreground.
	Cutoff uint8
	// MinArea: a region qualifies only when Area > MinArea.
	MinArea int
	// Connectivity is 4 or 8.
	Connectivity int
}

// ExtractParamsFromTuning builds ExtractParams from a loaded TuningConfig.
func ExtractParamsFromTuning(cfg *config.TuningConfig) ExtractParams {
	return ExtractParams{
		Cutoff:       uint8(cfg.GetMaskCutoff()),
		MinArea:      cfg.GetMinRegionArea(),
		Connectivity: cfg.GetConnectivity(),
	}
}

// Extractor turns a mask into qualifying regions. It holds no state between
// calls and is safe for concurrent use.
type Extractor struct {
	params ExtractParams
}

// NewExtractor validates p and returns an Extractor.
func NewExtractor(p ExtractParams) (*Extractor, error) {
	if p.Connectivity != 4 && p.Connectivity != 8 {
		return nil, fmt.Errorf("connectivity must be 4 or 8, got %d", p.Connectivity)
	}
	if p.MinArea < 0 {
		return nil, fmt.Errorf("min area must be non-negative, got %d", p.MinArea)
	}
	return &Extractor{params: p}, nil
}

// Params returns the extractor configuration.
func (e *Extractor) Params() ExtractParams { return e.params }

// Qualifies reports whether r is large enough to count as motion.
func (e *Extractor) Qualifies(r Region) bool { return r.Area > e.params.MinArea }

// Extract returns the qualifying regions, ordered top-to-bottom then
// left-to-right, and whether any qualified.
func (e *Extractor) Extract(mask *l3grid.Mask) ([]Region, bool) {
	regions := lo.Filter(e.Components(mask), func(r Region, _ int) bool {
		return e.Qualifies(r)
	})
	return regions, len(regions) > 0
}

var (
	offsets4 = []image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	offsets8 = []image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Components labels every connected component of the binarised mask,
// regardless of size.
func (e *Extractor) Components(mask *l3grid.Mask) []Region {
	w, h := mask.Width, mask.Height
	cutoff := e.params.Cutoff
	offsets := offsets8
	if e.params.Connectivity == 4 {
		offsets = offsets4
	}

	seen := make([]bool, len(mask.Pix))
	var stack []int
	var out []Region

	for start, v := range mask.Pix {
		if seen[start] || v <= cutoff {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		sx, sy := start%w, start/w
		box := image.Rect(sx, sy, sx+1, sy+1)
		area := 0

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			area++
			if x < box.Min.X {
				box.Min.X = x
			}
			if x >= box.Max.X {
				box.Max.X = x + 1
			}
			if y >= box.Max.Y {
				box.Max.Y = y + 1
			}
			for _, d := range offsets {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !seen[j] && mask.Pix[j] > cutoff {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		out = append(out, Region{Box: box, Area: area})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Box.Min.Y != out[j].Box.Min.Y {
			return out[i].Box.Min.Y < out[j].Box.Min.Y
		}
		return out[i].Box.Min.X < out[j].Box.Min.X
	})
	return out
}

// Boxes returns the bounding boxes of regions.
func Boxes(regions []Region) []image.Rectangle {
	return lo.Map(regions, func(r Region, _ int) image.Rectangle { return r.Box })
}
