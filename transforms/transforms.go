// Package transforms provides sample-to-sample steps for the landmark
// pipeline: resizing, cropping and layout conversion, plus Compose to chain
// them. Every step returns a new sample and leaves its input untouched.
package transforms

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Noofbiz/facemarks/datasets"
	"gonum.org/v1/gonum/mat"
)

// Size is a transform output size: either a single length or an explicit
// height and width. What a single length means depends on the step.
type Size struct {
	// Length is the single length form; zero means Height and Width are used.
	Length int
	Height int
	Width  int
}

// Scalar returns the single length form of Size.
func Scalar(n int) Size {
	return Size{Length: n}
}

// HW returns an explicit height x width Size.
func HW(height, width int) Size {
	return Size{Height: height, Width: width}
}

// IsScalar reports whether s is the single length form.
func (s Size) IsScalar() bool {
	return s.Length != 0
}

func (s Size) validate() error {
	if s.IsScalar() {
		if s.Length < 0 {
			return fmt.Errorf("size %d must be positive: %w", s.Length, datasets.ErrConfig)
		}
		return nil
	}
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("size %dx%d must be positive: %w", s.Height, s.Width, datasets.ErrConfig)
	}
	return nil
}

// square resolves the single length form to Length x Length.
func (s Size) square() (height, width int) {
	if s.IsScalar() {
		return s.Length, s.Length
	}
	return s.Height, s.Width
}

func (s Size) String() string {
	if s.IsScalar() {
		return fmt.Sprint(s.Length)
	}
	return fmt.Sprintf("%dx%d", s.Height, s.Width)
}

// Chain applies its steps in order.
type Chain []datasets.Transform

// Compose returns a Chain of steps. Compose(a, b).Apply(s) equals
// b.Apply(a.Apply(s)).
func Compose(steps ...datasets.Transform) Chain {
	return Chain(steps)
}

// Apply implements datasets.Transform.
func (c Chain) Apply(s datasets.Sample) (datasets.Sample, error) {
	var err error
	for i, step := range c {
		s, err = step.Apply(s)
		if err != nil {
			return datasets.Sample{}, fmt.Errorf("transform %d (%T): %w", i, step, err)
		}
	}
	return s, nil
}

// NewRand returns a seeded random source for the random transforms. A zero
// seed selects a time based one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// scaleLandmarks multiplies the x column by sx and the y column by sy.
func scaleLandmarks(m *mat.Dense, sx, sy float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		if j == 0 {
			return v * sx
		}
		return v * sy
	}, m)
	return out
}

// shiftLandmarks subtracts (dx, dy) from every landmark.
func shiftLandmarks(m *mat.Dense, dx, dy float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		if j == 0 {
			return v - dx
		}
		return v - dy
	}, m)
	return out
}

func checkSample(s datasets.Sample) error {
	if s.Image == nil || s.Landmarks == nil {
		return fmt.Errorf("sample has no image or landmarks: %w", datasets.ErrConfig)
	}
	return nil
}
