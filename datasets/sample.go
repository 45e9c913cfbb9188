package datasets

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Layout is the axis order of an Image's pixel buffer.
type Layout int

const (
	// HWC is height x width x channels, the order images are decoded in.
	HWC Layout = iota
	// CHW is channels x height x width, the order models usually consume.
	CHW
)

func (l Layout) String() string {
	switch l {
	case HWC:
		return "HWC"
	case CHW:
		return "CHW"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Image is a dense 3D pixel array stored row-major in the order given by
// Layout. Decoded values are 8-bit intensities in [0, 255].
type Image struct {
	Pix      []float32
	Height   int
	Width    int
	Channels int
	Layout   Layout
}

// NewImage allocates a zeroed image.
func NewImage(height, width, channels int, layout Layout) *Image {
	return &Image{
		Pix:      make([]float32, height*width*channels),
		Height:   height,
		Width:    width,
		Channels: channels,
		Layout:   layout,
	}
}

// Shape returns the dimensions in storage order: [H, W, C] for HWC and
// [C, H, W] for CHW.
func (m *Image) Shape() []int {
	if m.Layout == CHW {
		return []int{m.Channels, m.Height, m.Width}
	}
	return []int{m.Height, m.Width, m.Channels}
}

func (m *Image) offset(y, x, c int) int {
	if m.Layout == CHW {
		return (c*m.Height+y)*m.Width + x
	}
	return (y*m.Width+x)*m.Channels + c
}

// At returns the value at row y, column x, channel c, whatever the layout.
func (m *Image) At(y, x, c int) float32 {
	return m.Pix[m.offset(y, x, c)]
}

// Set stores v at row y, column x, channel c.
func (m *Image) Set(y, x, c int, v float32) {
	m.Pix[m.offset(y, x, c)] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = make([]float32, len(m.Pix))
	copy(out.Pix, m.Pix)
	return &out
}

// Transpose returns a copy of the image stored in layout. Values are not
// changed.
func (m *Image) Transpose(layout Layout) *Image {
	if layout == m.Layout {
		return m.Clone()
	}
	out := NewImage(m.Height, m.Width, m.Channels, layout)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			for c := 0; c < m.Channels; c++ {
				out.Set(y, x, c, m.At(y, x, c))
			}
		}
	}
	return out
}

// Crop copies the rectangle [top, top+height) x [left, left+width) into a new
// image with the same layout. The rectangle must lie inside the image.
func (m *Image) Crop(top, left, height, width int) (*Image, error) {
	if top < 0 || left < 0 || height <= 0 || width <= 0 ||
		top+height > m.Height || left+width > m.Width {
		return nil, fmt.Errorf("crop %dx%d at (%d,%d) outside image %dx%d: %w",
			height, width, top, left, m.Height, m.Width, ErrConfig)
	}
	out := NewImage(height, width, m.Channels, m.Layout)
	if m.Layout == HWC {
		// Rows are contiguous.
		rowLen := width * m.Channels
		for y := 0; y < height; y++ {
			src := m.offset(top+y, left, 0)
			copy(out.Pix[y*rowLen:(y+1)*rowLen], m.Pix[src:src+rowLen])
		}
		return out, nil
	}
	for c := 0; c < m.Channels; c++ {
		for y := 0; y < height; y++ {
			src := m.offset(top+y, left, c)
			dst := out.offset(y, 0, c)
			copy(out.Pix[dst:dst+width], m.Pix[src:src+width])
		}
	}
	return out, nil
}

// Sample is one image with its landmarks. Landmarks is a K x 2 matrix whose
// columns are (x, y) in pixel coordinates of Image.
type Sample struct {
	Image     *Image
	Landmarks *mat.Dense
}

// NumLandmarks returns K.
func (s Sample) NumLandmarks() int {
	if s.Landmarks == nil {
		return 0
	}
	r, _ := s.Landmarks.Dims()
	return r
}
