package main

import (
	"github.com/Noofbiz/facemarks/config"
	"github.com/Noofbiz/facemarks/datasets"
	"github.com/Noofbiz/facemarks/transforms"
)

// buildTransform assembles the configured chain: rescale, random crop, then
// the tensor layout conversion. Disabled steps are left out.
func buildTransform(cfg config.TransformConfig, resizer datasets.Resizer) (transforms.Chain, error) {
	var steps []datasets.Transform
	if cfg.Rescale > 0 {
		rescale, err := transforms.NewRescale(transforms.Scalar(cfg.Rescale))
		if err != nil {
			return nil, err
		}
		steps = append(steps, rescale.WithResizer(resizer))
	}
	if cfg.Crop > 0 {
		crop, err := transforms.NewRandomCrop(transforms.Scalar(cfg.Crop), transforms.NewRand(cfg.Seed))
		if err != nil {
			return nil, err
		}
		steps = append(steps, crop)
	}
	if cfg.ToTensor {
		steps = append(steps, transforms.ToTensorLayout{})
	}
	return transforms.Compose(steps...), nil
}
