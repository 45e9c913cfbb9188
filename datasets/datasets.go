package datasets

import "errors"

// This package turns a facial landmark annotation table plus a directory of
// images into samples suitable for batching.
//
// Layout and intended usage:
//
// Annotations
//   - Parsed once from a CSV file: header row, image file name in column 0,
//     then alternating x,y landmark coordinates.
//   - Immutable after loading; rows are addressed by index.
//
// FaceLandmarksDataset
//   - Stores the annotations and a root directory, and only reads images when
//     a sample is requested. Nothing is cached, so memory stays bounded by the
//     samples the caller holds.
//   - Each sample is {Image, Landmarks}; an optional Transform is applied
//     before the sample is returned.
//
// Batch
//   - Samples of equal shape are stacked into flat float32 buffers with a
//     leading batch dimension (see Collate) and can be handed to gomlx as
//     tensors.

// Dataset is the interface the batch loader and the exporters consume.
// Implementations must be safe for concurrent calls to Sample.
type Dataset interface {
	Len() int
	Sample(i int) (Sample, error)
}

// Transform maps a sample to a new sample. Implementations must not modify
// their input.
type Transform interface {
	Apply(s Sample) (Sample, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(s Sample) (Sample, error)

// Apply calls f(s).
func (f TransformFunc) Apply(s Sample) (Sample, error) {
	return f(s)
}

// Error kinds. Every error returned by this module wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	// ErrParse reports a missing or malformed annotation file.
	ErrParse = errors.New("annotation parse error")
	// ErrImageDecode reports a missing or undecodable image.
	ErrImageDecode = errors.New("image decode error")
	// ErrIndex reports an out of range sample or row index.
	ErrIndex = errors.New("index error")
	// ErrCollate reports samples with mismatched shapes inside one batch.
	ErrCollate = errors.New("collate error")
	// ErrConfig reports an invalid transform or loader configuration.
	ErrConfig = errors.New("config error")
)
