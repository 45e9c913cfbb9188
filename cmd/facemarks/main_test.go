package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/facemarks/config"
	"github.com/Noofbiz/facemarks/datasets"
	"github.com/Noofbiz/facemarks/export"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

func TestBuildTransform(t *testing.T) {
	chain, err := buildTransform(config.TransformConfig{Rescale: 16, Crop: 12, ToTensor: true, Seed: 3}, datasets.ImagingCodec{})
	require.NoError(t, err)
	require.Len(t, chain, 3)

	img := datasets.NewImage(20, 40, 3, datasets.HWC)
	out, err := chain.Apply(datasets.Sample{Image: img, Landmarks: mat.NewDense(1, 2, []float64{20, 10})})
	require.NoError(t, err)
	assert.Equal(t, datasets.CHW, out.Image.Layout)
	assert.Equal(t, []int{3, 12, 12}, out.Image.Shape())

	chain, err = buildTransform(config.TransformConfig{}, datasets.ImagingCodec{})
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	var sb strings.Builder
	sb.WriteString("image_name,part_0_x,part_0_y,part_1_x,part_1_y\n")
	for i, dims := range [][2]int{{30, 40}, {50, 32}, {32, 32}, {64, 40}, {40, 40}} {
		name := fmt.Sprintf("face%d.jpg", i)
		img := imaging.New(dims[1], dims[0], color.NRGBA{R: 200, G: 150, B: 100, A: 255})
		require.NoError(t, imaging.Save(img, filepath.Join(root, name)))
		fmt.Fprintf(&sb, "%s,%d,%d,%d,%d\n", name, 5, 6, 20, 25)
	}
	csvPath := filepath.Join(root, "faces.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sb.String()), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.CSVFile = csvPath
	cfg.Data.RootDir = root
	cfg.Transform.Rescale = 32
	cfg.Transform.Crop = 24
	cfg.Loader.BatchSize = 2
	cfg.Loader.NumWorkers = 2
	cfg.Export.Path = filepath.Join(t.TempDir(), "faces.tfrecord")
	cfg.Export.Shards = 2
	require.NoError(t, cfg.Validate())

	require.NoError(t, run(context.Background(), cfg, 65, 10, zap.NewNop()))
	for idx := 0; idx < 2; idx++ {
		_, err := os.Stat(export.ShardPath(cfg.Export.Path, idx, 2))
		assert.NoError(t, err)
	}
}

func TestRun_MissingImage(t *testing.T) {
	root := t.TempDir()
	csvPath := filepath.Join(root, "faces.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("image_name,x,y\nmissing.png,1,2\n"), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.CSVFile = csvPath
	cfg.Data.RootDir = root

	err = run(context.Background(), cfg, 0, 1, zap.NewNop())
	assert.ErrorIs(t, err, datasets.ErrImageDecode)
}

func TestRun_HeaderOnly(t *testing.T) {
	root := t.TempDir()
	csvPath := filepath.Join(root, "faces.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("image_name,x,y\n"), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.CSVFile = csvPath
	cfg.Data.RootDir = root

	require.NoError(t, run(context.Background(), cfg, 65, 1, zap.NewNop()))
}
