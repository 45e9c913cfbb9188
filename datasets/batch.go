package datasets

import (
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batch stores a group of samples stacked along a new leading dimension, in
// flat contiguous buffers.
type Batch struct {
	// Images holds Size images back to back, each in Layout order.
	Images []float32
	// ImageShape is the per-sample image shape in storage order.
	ImageShape []int
	Layout     Layout

	// Landmarks holds Size x NumLandmarks x 2 coordinates.
	Landmarks    []float32
	NumLandmarks int

	Size int
}

// Collate stacks samples into a Batch. Every sample must have the same image
// shape, layout and landmark count; resizing or cropping transforms are what
// normally guarantee this.
func Collate(samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return &Batch{}, nil
	}
	for i, s := range samples {
		if s.Image == nil || s.Landmarks == nil {
			return nil, fmt.Errorf("sample %d is incomplete: %w", i, ErrCollate)
		}
	}

	first := samples[0]
	imageShape := first.Image.Shape()
	layout := first.Image.Layout
	numLandmarks := first.NumLandmarks()
	for i := 1; i < len(samples); i++ {
		s := samples[i]
		if s.Image.Layout != layout || !slices.Equal(s.Image.Shape(), imageShape) {
			return nil, fmt.Errorf("inconsistent image shapes: sample 0 has %v %v, sample %d has %v %v: %w",
				layout, imageShape, i, s.Image.Layout, s.Image.Shape(), ErrCollate)
		}
		if s.NumLandmarks() != numLandmarks {
			return nil, fmt.Errorf("inconsistent landmark counts: sample 0 has %d, sample %d has %d: %w",
				numLandmarks, i, s.NumLandmarks(), ErrCollate)
		}
	}

	batchSize := len(samples)
	imageSize := len(first.Image.Pix)
	b := &Batch{
		Images:       make([]float32, batchSize*imageSize),
		ImageShape:   imageShape,
		Layout:       layout,
		Landmarks:    make([]float32, batchSize*numLandmarks*2),
		NumLandmarks: numLandmarks,
		Size:         batchSize,
	}
	for i, s := range samples {
		if len(s.Image.Pix) != imageSize {
			return nil, fmt.Errorf("image %d has wrong buffer size: expected %d, got %d: %w",
				i, imageSize, len(s.Image.Pix), ErrCollate)
		}
		copy(b.Images[i*imageSize:], s.Image.Pix)
		lm := b.Landmarks[i*numLandmarks*2 : (i+1)*numLandmarks*2]
		for k := 0; k < numLandmarks; k++ {
			lm[2*k] = float32(s.Landmarks.At(k, 0))
			lm[2*k+1] = float32(s.Landmarks.At(k, 1))
		}
	}
	return b, nil
}

// ImagesShape returns the batched image shape, [Size, ImageShape...].
func (b *Batch) ImagesShape() []int {
	return append([]int{b.Size}, b.ImageShape...)
}

// LandmarksShape returns the batched landmark shape, [Size, NumLandmarks, 2].
func (b *Batch) LandmarksShape() []int {
	return []int{b.Size, b.NumLandmarks, 2}
}

// Bytes returns the memory held by the batch buffers.
func (b *Batch) Bytes() int {
	return 4 * (len(b.Images) + len(b.Landmarks))
}

// ToGomlxTensors converts the batch into an images tensor and a landmarks
// tensor, both float32.
func (b *Batch) ToGomlxTensors() (images *tensors.Tensor, landmarks *tensors.Tensor, err error) {
	if b.Size == 0 {
		return nil, nil, fmt.Errorf("cannot convert an empty batch: %w", ErrCollate)
	}
	images = tensors.FromFlatDataAndDimensions(b.Images, b.ImagesShape()...)
	landmarks = tensors.FromFlatDataAndDimensions(b.Landmarks, b.LandmarksShape()...)
	return images, landmarks, nil
}

// IndexFromTensor converts an integer scalar tensor into a plain sample index.
// Any other tensor is rejected with ErrIndex.
func IndexFromTensor(t *tensors.Tensor) (int, error) {
	if t == nil {
		return 0, fmt.Errorf("nil index tensor: %w", ErrIndex)
	}
	if dims := t.Shape().Dimensions; len(dims) != 0 {
		return 0, fmt.Errorf("index tensor must be a scalar, got shape %v: %w", dims, ErrIndex)
	}
	switch v := t.Value().(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("index tensor has non-integer type %T: %w", v, ErrIndex)
	}
}
