package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Noofbiz/facemarks/datasets"
	"github.com/disintegration/imaging"
	"github.com/golang/protobuf/proto"
	tensorflow "github.com/ryszard/tfutils/proto/tensorflow/core/example"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, castagnoli)
	return ((crc >> 15) | (crc << 17)) + 0xa282ead8
}

// readRecords splits TFRecord framing and checks both checksums of every
// record.
func readRecords(t *testing.T, data []byte) [][]byte {
	t.Helper()
	var records [][]byte
	for len(data) > 0 {
		require.GreaterOrEqual(t, len(data), 12, "truncated header")
		header := data[:8]
		length := binary.LittleEndian.Uint64(header)
		require.Equal(t, maskedCRC(header), binary.LittleEndian.Uint32(data[8:12]), "length checksum")
		data = data[12:]
		require.GreaterOrEqual(t, uint64(len(data)), length+4, "truncated record")
		payload := data[:length]
		require.Equal(t, maskedCRC(payload), binary.LittleEndian.Uint32(data[length:length+4]), "data checksum")
		records = append(records, payload)
		data = data[length+4:]
	}
	return records
}

func decodeExample(t *testing.T, record []byte) map[string]*tensorflow.Feature {
	t.Helper()
	var ex tensorflow.Example
	require.NoError(t, proto.Unmarshal(record, &ex))
	return ex.GetFeatures().GetFeature()
}

func testSample() datasets.Sample {
	img := datasets.NewImage(2, 3, 1, datasets.CHW)
	for i := range img.Pix {
		img.Pix[i] = float32(i * 10)
	}
	return datasets.Sample{Image: img, Landmarks: mat.NewDense(2, 2, []float64{1.5, 2, -3, 4.25})}
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write("a.jpg", testSample()))
	require.NoError(t, w.Write("b.jpg", testSample()))
	assert.Equal(t, 2, w.Count())
	assert.Equal(t, uint64(buf.Len()), w.Bytes())

	records := readRecords(t, buf.Bytes())
	require.Len(t, records, 2)

	f := decodeExample(t, records[1])
	assert.Equal(t, []int64{2}, f[FeatureHeight].GetInt64List().Value)
	assert.Equal(t, []int64{3}, f[FeatureWidth].GetInt64List().Value)
	assert.Equal(t, []int64{1}, f[FeatureChannels].GetInt64List().Value)
	assert.Equal(t, [][]byte{[]byte("CHW")}, f[FeatureLayout].GetBytesList().Value)
	assert.Equal(t, [][]byte{[]byte("b.jpg")}, f[FeatureSourceID].GetBytesList().Value)
	assert.Equal(t, []float32{0, 10, 20, 30, 40, 50}, f[FeaturePixels].GetFloatList().Value)
	assert.Equal(t, []float32{1.5, 2, -3, 4.25}, f[FeatureLandmarks].GetFloatList().Value)
	assert.Equal(t, []int64{2}, f[FeatureLandmarkCount].GetInt64List().Value)
}

func TestWriter_IncompleteSample(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(&buf).Write("x", datasets.Sample{})
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestShardPath(t *testing.T) {
	assert.Equal(t, "out.tfrecord", ShardPath("out.tfrecord", 0, 1))
	assert.Equal(t, "out.tfrecord-00002-of-00010", ShardPath("out.tfrecord", 2, 10))
}

// writeFaces writes n 4x5 PNG images with their annotation table and returns
// the dataset over them.
func writeFaces(t *testing.T, n int) *datasets.FaceLandmarksDataset {
	t.Helper()
	root := t.TempDir()
	var sb strings.Builder
	sb.WriteString("image_name,part_0_x,part_0_y\n")
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("img-%d.png", i)
		require.NoError(t, imaging.Save(imaging.New(5, 4, color.NRGBA{R: 1, G: 2, B: 3, A: 255}), filepath.Join(root, name)))
		fmt.Fprintf(&sb, "%s,%d,%d\n", name, i, 2*i)
	}
	csvPath := filepath.Join(root, "faces.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sb.String()), 0o644))
	ds, err := datasets.NewFaceLandmarksDataset(csvPath, root, nil)
	require.NoError(t, err)
	return ds
}

func TestWriteTFRecord_SingleFile(t *testing.T) {
	ds := writeFaces(t, 3)
	path := filepath.Join(t.TempDir(), "faces.tfrecord")

	n, err := WriteTFRecord(path, ds, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records := readRecords(t, data)
	require.Len(t, records, 3)
	for i, r := range records {
		f := decodeExample(t, r)
		assert.Equal(t, [][]byte{[]byte(fmt.Sprintf("img-%d.png", i))}, f[FeatureSourceID].GetBytesList().Value)
		assert.Equal(t, []float32{float32(i), float32(2 * i)}, f[FeatureLandmarks].GetFloatList().Value)
		assert.Equal(t, []int64{4}, f[FeatureHeight].GetInt64List().Value)
		assert.Equal(t, []int64{5}, f[FeatureWidth].GetInt64List().Value)
		assert.Len(t, f[FeaturePixels].GetFloatList().Value, 4*5*3)
	}
}

func TestWriteTFRecord_Shards(t *testing.T) {
	ds := writeFaces(t, 5)
	path := filepath.Join(t.TempDir(), "faces.tfrecord")

	n, err := WriteTFRecord(path, ds, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var counts []int
	for idx := 0; idx < 2; idx++ {
		data, err := os.ReadFile(ShardPath(path, idx, 2))
		require.NoError(t, err)
		counts = append(counts, len(readRecords(t, data)))
	}
	assert.Equal(t, []int{3, 2}, counts)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTFRecord_MoreShardsThanSamples(t *testing.T) {
	ds := writeFaces(t, 2)
	path := filepath.Join(t.TempDir(), "faces.tfrecord")

	_, err := WriteTFRecord(path, ds, 8, nil)
	require.NoError(t, err)
	for idx := 0; idx < 2; idx++ {
		_, err := os.Stat(ShardPath(path, idx, 2))
		assert.NoError(t, err)
	}
}

func TestWriteTFRecord_StopsOnBadSample(t *testing.T) {
	ds := writeFaces(t, 3)
	require.NoError(t, os.Remove(filepath.Join(ds.RootDir, "img-1.png")))
	path := filepath.Join(t.TempDir(), "faces.tfrecord")

	n, err := WriteTFRecord(path, ds, 1, nil)
	require.ErrorIs(t, err, datasets.ErrImageDecode)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readRecords(t, data), 1)
}
