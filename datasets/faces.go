package datasets

import (
	"errors"
	"fmt"
)

// FaceLandmarksDataset lazily materialises samples from an annotation table and
// the directory holding the annotated images. The annotations are read once by
// the constructor; images are decoded on every call to Sample.
type FaceLandmarksDataset struct {
	// RootDir is the directory the annotation image names are relative to.
	RootDir string

	annotations *Annotations
	transform   Transform
	decoder     Decoder
}

var _ Dataset = (*FaceLandmarksDataset)(nil)

// NewFaceLandmarksDataset loads the annotations in csvFile. Images are resolved
// relative to rootDir. transform may be nil.
func NewFaceLandmarksDataset(csvFile, rootDir string, transform Transform) (*FaceLandmarksDataset, error) {
	annotations, err := LoadAnnotations(csvFile)
	if err != nil {
		return nil, err
	}
	return NewFaceLandmarksDatasetFromAnnotations(annotations, rootDir, transform), nil
}

// NewFaceLandmarksDatasetFromAnnotations builds a dataset over annotations that
// were already loaded, so several datasets (e.g. raw and transformed) can share
// one table.
func NewFaceLandmarksDatasetFromAnnotations(annotations *Annotations, rootDir string,
	transform Transform) *FaceLandmarksDataset {
	return &FaceLandmarksDataset{
		RootDir:     rootDir,
		annotations: annotations,
		transform:   transform,
		decoder:     ImagingCodec{},
	}
}

// WithDecoder replaces the image decoder. Returns the dataset to allow
// chaining.
func (d *FaceLandmarksDataset) WithDecoder(decoder Decoder) *FaceLandmarksDataset {
	d.decoder = decoder
	return d
}

// Name returns the name of the dataset.
func (d *FaceLandmarksDataset) Name() string {
	return "FaceLandmarksDataset"
}

// Len returns the number of annotated images.
func (d *FaceLandmarksDataset) Len() int {
	return d.annotations.Len()
}

// Annotations returns the underlying annotation table.
func (d *FaceLandmarksDataset) Annotations() *Annotations {
	return d.annotations
}

// ImageName returns the image file name of sample i as written in the
// annotation file.
func (d *FaceLandmarksDataset) ImageName(i int) (string, error) {
	row, err := d.annotations.Row(i)
	if err != nil {
		return "", err
	}
	return row.ImageName, nil
}

// ImagePath returns the file system path of the image of sample i.
func (d *FaceLandmarksDataset) ImagePath(i int) (string, error) {
	name, err := d.ImageName(i)
	if err != nil {
		return "", err
	}
	return joinImagePath(d.RootDir, name), nil
}

// Sample reads, decodes and transforms sample i. Nothing is cached: repeated
// calls redo the file I/O and the whole transform chain.
func (d *FaceLandmarksDataset) Sample(i int) (Sample, error) {
	row, err := d.annotations.Row(i)
	if err != nil {
		return Sample{}, err
	}

	path := joinImagePath(d.RootDir, row.ImageName)
	img, err := d.decoder.Decode(path)
	if err != nil {
		if !errors.Is(err, ErrImageDecode) && !errors.Is(err, ErrConfig) {
			err = fmt.Errorf("%w: %w", ErrImageDecode, err)
		}
		return Sample{}, fmt.Errorf("sample %d: %w", i, err)
	}

	sample := Sample{Image: img, Landmarks: row.Landmarks()}
	if d.transform == nil {
		return sample, nil
	}
	sample, err = d.transform.Apply(sample)
	if err != nil {
		return Sample{}, fmt.Errorf("sample %d (%s): %w", i, row.ImageName, err)
	}
	return sample, nil
}

// Batch reads the samples for indices, in order.
func (d *FaceLandmarksDataset) Batch(indices []int) ([]Sample, error) {
	samples := make([]Sample, len(indices))
	for i, idx := range indices {
		s, err := d.Sample(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return samples, nil
}
