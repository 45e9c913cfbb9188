// Package export serialises landmark samples as tensorflow.Example records
// in TFRecord files, so pipelines outside Go can consume them.
package export

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Noofbiz/facemarks/datasets"
	"github.com/dustin/go-humanize"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"go.uber.org/zap"
)

// Feature names of the exported examples.
const (
	FeatureHeight        = "image/height"
	FeatureWidth         = "image/width"
	FeatureChannels      = "image/channels"
	FeatureLayout        = "image/layout"
	FeaturePixels        = "image/pixels"
	FeatureSourceID      = "image/source_id"
	FeatureLandmarks     = "landmarks"
	FeatureLandmarkCount = "landmarks/count"
)

// Features builds the feature map of one sample. Pixels are stored in the
// image's layout order and landmarks flattened as x0, y0, x1, y1, ...
func Features(id string, s datasets.Sample) map[string]interface{} {
	landmarks := make([]float32, 0, 2*s.NumLandmarks())
	for k := 0; k < s.NumLandmarks(); k++ {
		landmarks = append(landmarks, float32(s.Landmarks.At(k, 0)), float32(s.Landmarks.At(k, 1)))
	}
	pixels := make([]float32, len(s.Image.Pix))
	copy(pixels, s.Image.Pix)

	f := make(map[string]interface{}, 8)
	f[FeatureHeight] = s.Image.Height
	f[FeatureWidth] = s.Image.Width
	f[FeatureChannels] = s.Image.Channels
	f[FeatureLayout] = s.Image.Layout.String()
	f[FeaturePixels] = pixels
	f[FeatureSourceID] = id
	f[FeatureLandmarks] = landmarks
	f[FeatureLandmarkCount] = s.NumLandmarks()
	return f
}

// Writer frames samples as TFRecords on an underlying writer.
type Writer struct {
	w     io.Writer
	count int
	bytes uint64
}

// NewWriter returns a Writer appending records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serialises s as a tensorflow.Example tagged with id and appends it as
// one record.
func (w *Writer) Write(id string, s datasets.Sample) (err error) {
	if s.Image == nil || s.Landmarks == nil {
		return errors.Errorf("sample %q has no image or landmarks", id)
	}
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("conversion of %q to TensorFlow Example failed: %v", id, e)
		}
	}()

	enc, err := proto.Marshal(example.New(Features(id, s)))
	if err != nil {
		return errors.Wrapf(err, "failed to marshal example %q", id)
	}
	if err := tfrecord.Write(w.w, enc); err != nil {
		return errors.Wrapf(err, "failed to write record %q", id)
	}
	w.count++
	// Length and two checksums frame every record.
	w.bytes += uint64(len(enc)) + 16
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Bytes returns the number of bytes written, framing included.
func (w *Writer) Bytes() uint64 {
	return w.bytes
}

// ShardPath returns the file name of shard idx out of numShards. A single
// shard is written to path itself.
func ShardPath(path string, idx, numShards int) string {
	if numShards <= 1 {
		return path
	}
	return path + fmt.Sprintf("-%05d-of-%05d", idx, numShards)
}

// WriteTFRecord streams every sample of ds, transforms applied, into path, or
// into numShards files named by ShardPath when numShards > 1. Records are
// split evenly across shards in index order. It stops at the first sample
// that fails to load or serialise and returns the number of records written.
func WriteTFRecord(path string, ds datasets.Dataset, numShards int, logger *zap.Logger) (written int, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := ds.Len()
	if numShards <= 0 {
		numShards = 1
	}
	if numShards > n && n > 0 {
		numShards = n
	}
	if n == 0 {
		logger.Warn("dataset is empty, nothing exported", zap.String("path", path))
		return 0, nil
	}
	shardSize := int(math.Ceil(float64(n) / float64(numShards)))

	var (
		shardFile *os.File
		shardPath string
		w         *Writer
	)
	closeShard := func() error {
		if shardFile == nil {
			return nil
		}
		cerr := shardFile.Close()
		logger.Info("wrote shard",
			zap.String("path", shardPath),
			zap.Int("records", w.Count()),
			zap.String("size", humanize.Bytes(w.Bytes())))
		shardFile = nil
		if cerr != nil {
			return errors.Wrapf(cerr, "failed to close shard %q", shardPath)
		}
		return nil
	}
	defer func() {
		if cerr := closeShard(); err == nil {
			err = cerr
		}
	}()

	for i := 0; i < n; i++ {
		if i%shardSize == 0 {
			if err := closeShard(); err != nil {
				return written, err
			}
			shardPath = ShardPath(path, i/shardSize, numShards)
			f, err := os.Create(shardPath)
			if err != nil {
				return written, errors.Wrapf(err, "failed to create shard at %q", shardPath)
			}
			shardFile = f
			w = NewWriter(f)
		}

		s, err := ds.Sample(i)
		if err != nil {
			return written, errors.WithMessagef(err, "failed to export sample %d", i)
		}
		if err := w.Write(sourceID(ds, i), s); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// sourceID names sample i by its image file when the dataset knows it.
func sourceID(ds datasets.Dataset, i int) string {
	if named, ok := ds.(interface{ ImageName(int) (string, error) }); ok {
		if name, err := named.ImageName(i); err == nil {
			return name
		}
	}
	return fmt.Sprint(i)
}
