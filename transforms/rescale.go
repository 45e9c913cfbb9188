package transforms

import (
	"fmt"

	"github.com/Noofbiz/facemarks/datasets"
)

// Rescale resizes the image of a sample and scales its landmarks to match.
//
// With a Scalar size the shorter image side becomes that length and the
// aspect ratio is kept; with an HW size the image is resized to exactly that
// height and width.
type Rescale struct {
	size    Size
	resizer datasets.Resizer
}

// NewRescale returns a Rescale step resampling with the default imaging codec.
func NewRescale(size Size) (*Rescale, error) {
	if err := size.validate(); err != nil {
		return nil, err
	}
	return &Rescale{size: size, resizer: datasets.ImagingCodec{}}, nil
}

// WithResizer replaces the image resampler. Returns r to allow chaining.
func (r *Rescale) WithResizer(resizer datasets.Resizer) *Rescale {
	r.resizer = resizer
	return r
}

// OutputSize returns the size an h x w image is resized to. The scalar form
// truncates the longer side to an integer.
func (r *Rescale) OutputSize(h, w int) (newH, newW int, err error) {
	if h <= 0 || w <= 0 {
		return 0, 0, fmt.Errorf("cannot rescale an empty %dx%d image: %w", h, w, datasets.ErrConfig)
	}
	if r.size.IsScalar() {
		t := float64(r.size.Length)
		if h > w {
			newH, newW = int(t*float64(h)/float64(w)), r.size.Length
		} else {
			newH, newW = r.size.Length, int(t*float64(w)/float64(h))
		}
	} else {
		newH, newW = r.size.Height, r.size.Width
	}
	if newH <= 0 || newW <= 0 {
		return 0, 0, fmt.Errorf("rescale %s of %dx%d image yields %dx%d: %w",
			r.size, h, w, newH, newW, datasets.ErrConfig)
	}
	return newH, newW, nil
}

// Apply implements datasets.Transform.
func (r *Rescale) Apply(s datasets.Sample) (datasets.Sample, error) {
	if err := checkSample(s); err != nil {
		return datasets.Sample{}, err
	}
	h, w := s.Image.Height, s.Image.Width
	newH, newW, err := r.OutputSize(h, w)
	if err != nil {
		return datasets.Sample{}, err
	}

	img, err := r.resizer.Resize(s.Image, newH, newW)
	if err != nil {
		return datasets.Sample{}, fmt.Errorf("failed to resize %dx%d to %dx%d: %w", h, w, newH, newW, err)
	}

	// Landmarks are (x, y): x follows the width ratio, y the height ratio.
	landmarks := scaleLandmarks(s.Landmarks, float64(newW)/float64(w), float64(newH)/float64(h))
	return datasets.Sample{Image: img, Landmarks: landmarks}, nil
}
