package main

// facemarks walks the landmark pipeline end to end: it inspects one
// annotation row, decodes a few raw samples, applies the transform chain and
// iterates the batch loader, optionally exporting the transformed samples as
// TFRecords.
//
// Usage:
//   go run ./cmd/facemarks -csv data/faces/face_landmarks.csv -root data/faces
//
// Settings come from the optional -config YAML file and FACEMARKS_*
// environment variables; flags given on the command line take precedence.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/Noofbiz/facemarks/config"
	"github.com/Noofbiz/facemarks/datasets"
	"github.com/Noofbiz/facemarks/export"
	"github.com/Noofbiz/facemarks/loader"
	"github.com/Noofbiz/facemarks/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration `file` (optional)")
	csvFile := flag.String("csv", "", "annotation CSV file")
	rootDir := flag.String("root", "", "directory the annotated images are relative to")
	row := flag.Int("row", 65, "annotation row to inspect")
	batchSize := flag.Int("batch-size", 0, "samples per batch")
	shuffle := flag.Bool("shuffle", true, "shuffle samples every epoch")
	workers := flag.Int("workers", 0, "loader worker goroutines (0 = load on the caller)")
	seed := flag.Uint64("seed", 0, "seed for shuffling and random crops (0 = time based)")
	rescale := flag.Int("rescale", 0, "shorter side after rescaling (0 disables)")
	crop := flag.Int("crop", 0, "random square crop size (0 disables)")
	maxBatches := flag.Int("max-batches", 4, "number of batches to print")
	exportPath := flag.String("export", "", "write transformed samples as TFRecords to `path`")
	shards := flag.Int("shards", 0, "number of TFRecord shards")
	logMode := flag.String("log-mode", "", "'release' for JSON logs, 'debug' for console logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Only flags given explicitly override the file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "csv":
			cfg.Data.CSVFile = *csvFile
		case "root":
			cfg.Data.RootDir = *rootDir
		case "batch-size":
			cfg.Loader.BatchSize = *batchSize
		case "shuffle":
			cfg.Loader.Shuffle = *shuffle
		case "workers":
			cfg.Loader.NumWorkers = *workers
		case "seed":
			cfg.Loader.Seed = *seed
			cfg.Transform.Seed = *seed
		case "rescale":
			cfg.Transform.Rescale = *rescale
		case "crop":
			cfg.Transform.Crop = *crop
		case "export":
			cfg.Export.Path = *exportPath
		case "shards":
			cfg.Export.Shards = *shards
		case "log-mode":
			cfg.Log.Mode = *logMode
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *row, *maxBatches, logger); err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		logging.Sync(logger)
		stop()
		log.Fatalf("facemarks: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, row, maxBatches int, logger *zap.Logger) error {
	annotations, err := datasets.LoadAnnotations(cfg.Data.CSVFile)
	if err != nil {
		return err
	}
	logger.Info("loaded annotations",
		zap.String("path", cfg.Data.CSVFile),
		zap.Int("rows", annotations.Len()),
		zap.Int("landmarks", annotations.NumLandmarks()))

	// One row, no image I/O. A header-only table has nothing to show.
	if annotations.Len() > 0 {
		if err := printRow(annotations, row); err != nil {
			return err
		}
	}

	codec := datasets.ImagingCodec{
		Channels:   cfg.Data.Channels,
		Filter:     cfg.Transform.Filter,
		AutoOrient: cfg.Data.AutoOrient,
	}

	raw := datasets.NewFaceLandmarksDatasetFromAnnotations(annotations, cfg.Data.RootDir, nil).WithDecoder(codec)
	fmt.Println("Raw samples:")
	if err := printSamples(raw, 3); err != nil {
		return err
	}
	fmt.Println()

	transform, err := buildTransform(cfg.Transform, codec)
	if err != nil {
		return err
	}
	transformed := datasets.NewFaceLandmarksDatasetFromAnnotations(annotations, cfg.Data.RootDir, transform).
		WithDecoder(codec)
	fmt.Println("Transformed samples:")
	if err := printSamples(transformed, 3); err != nil {
		return err
	}
	fmt.Println()

	l, err := loader.New(transformed, loader.Config{
		BatchSize:  cfg.Loader.BatchSize,
		Shuffle:    cfg.Loader.Shuffle,
		NumWorkers: cfg.Loader.NumWorkers,
		Prefetch:   cfg.Loader.Prefetch,
		Seed:       cfg.Loader.Seed,
		Logger:     logger,
		Name:       transformed.Name(),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Batches per epoch: %d\n", l.Len())
	b := 0
	for batch, err := range l.Epoch(ctx) {
		if err != nil {
			return err
		}
		fmt.Printf("  batch %d: images %v landmarks %v\n", b, batch.ImagesShape(), batch.LandmarksShape())
		b++
		if b >= maxBatches {
			break
		}
	}

	if cfg.Export.Path == "" {
		return nil
	}
	n, err := export.WriteTFRecord(cfg.Export.Path, transformed, cfg.Export.Shards, logger)
	if err != nil {
		return err
	}
	fmt.Printf("\nExported %d samples to %s\n", n, cfg.Export.Path)
	return nil
}

func printSamples(ds *datasets.FaceLandmarksDataset, n int) error {
	for i := 0; i < min(n, ds.Len()); i++ {
		s, err := ds.Sample(i)
		if err != nil {
			return err
		}
		k, c := s.Landmarks.Dims()
		fmt.Printf("  %d: image %s %v landmarks (%d, %d)\n", i, s.Image.Layout, s.Image.Shape(), k, c)
	}
	return nil
}

// printRow prints the image name and first landmarks of one annotation row,
// clamping row to the last one.
func printRow(annotations *datasets.Annotations, row int) error {
	if row >= annotations.Len() {
		row = annotations.Len() - 1
	}
	r, err := annotations.Row(row)
	if err != nil {
		return err
	}
	landmarks := r.Landmarks()
	k, c := landmarks.Dims()
	fmt.Printf("Image name: %s\n", r.ImageName)
	fmt.Printf("Landmarks shape: (%d, %d)\n", k, c)
	for i := 0; i < min(4, k); i++ {
		fmt.Printf("  landmark %d: (%g, %g)\n", i, landmarks.At(i, 0), landmarks.At(i, 1))
	}
	fmt.Println()
	return nil
}
