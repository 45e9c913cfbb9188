package transforms

import (
	"github.com/Noofbiz/facemarks/datasets"
	"gonum.org/v1/gonum/mat"
)

// ToTensorLayout converts the image from HWC to CHW, the axis order models
// consume. Pixel and landmark values are unchanged; images already in CHW are
// copied as is.
type ToTensorLayout struct{}

// Apply implements datasets.Transform.
func (ToTensorLayout) Apply(s datasets.Sample) (datasets.Sample, error) {
	if err := checkSample(s); err != nil {
		return datasets.Sample{}, err
	}
	return datasets.Sample{
		Image:     s.Image.Transpose(datasets.CHW),
		Landmarks: mat.DenseCopyOf(s.Landmarks),
	}, nil
}
