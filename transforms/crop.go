package transforms

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Noofbiz/facemarks/datasets"
)

// RandomCrop cuts a randomly placed window out of the image, for data
// augmentation. A Scalar size is a square window.
//
// Landmarks are shifted by the window offset and never clamped, so points that
// fall outside the window end up with negative or out of bounds coordinates.
type RandomCrop struct {
	height, width int

	// mu guards rng, which is shared when loader workers run the chain.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCrop returns a RandomCrop step drawing offsets from rng. A nil rng
// is replaced by a time seeded one.
func NewRandomCrop(size Size, rng *rand.Rand) (*RandomCrop, error) {
	if err := size.validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	h, w := size.square()
	return &RandomCrop{height: h, width: w, rng: rng}, nil
}

// Size returns the crop height and width.
func (c *RandomCrop) Size() (height, width int) {
	return c.height, c.width
}

// Window draws the crop offset for an h x w image: top uniform in
// [0, h-height) and left uniform in [0, w-width). A crop dimension equal to
// the image dimension has the single offset 0.
func (c *RandomCrop) Window(h, w int) (top, left int, err error) {
	if c.height > h || c.width > w {
		return 0, 0, fmt.Errorf("crop %dx%d larger than image %dx%d: %w",
			c.height, c.width, h, w, datasets.ErrConfig)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if h > c.height {
		top = c.rng.IntN(h - c.height)
	}
	if w > c.width {
		left = c.rng.IntN(w - c.width)
	}
	return top, left, nil
}

// Apply implements datasets.Transform.
func (c *RandomCrop) Apply(s datasets.Sample) (datasets.Sample, error) {
	if err := checkSample(s); err != nil {
		return datasets.Sample{}, err
	}
	top, left, err := c.Window(s.Image.Height, s.Image.Width)
	if err != nil {
		return datasets.Sample{}, err
	}
	return cropSample(s, top, left, c.height, c.width)
}

// CenterCrop cuts the centred window out of the image. It is the
// deterministic counterpart of RandomCrop, for evaluation pipelines.
type CenterCrop struct {
	height, width int
}

// NewCenterCrop returns a CenterCrop step. A Scalar size is a square window.
func NewCenterCrop(size Size) (*CenterCrop, error) {
	if err := size.validate(); err != nil {
		return nil, err
	}
	h, w := size.square()
	return &CenterCrop{height: h, width: w}, nil
}

// Apply implements datasets.Transform.
func (c *CenterCrop) Apply(s datasets.Sample) (datasets.Sample, error) {
	if err := checkSample(s); err != nil {
		return datasets.Sample{}, err
	}
	h, w := s.Image.Height, s.Image.Width
	if c.height > h || c.width > w {
		return datasets.Sample{}, fmt.Errorf("crop %dx%d larger than image %dx%d: %w",
			c.height, c.width, h, w, datasets.ErrConfig)
	}
	return cropSample(s, (h-c.height)/2, (w-c.width)/2, c.height, c.width)
}

func cropSample(s datasets.Sample, top, left, height, width int) (datasets.Sample, error) {
	img, err := s.Image.Crop(top, left, height, width)
	if err != nil {
		return datasets.Sample{}, err
	}
	return datasets.Sample{
		Image:     img,
		Landmarks: shiftLandmarks(s.Landmarks, float64(left), float64(top)),
	}, nil
}
