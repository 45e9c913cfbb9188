package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// AnnotationRow is one line of the annotation table: an image file name and
// its landmark coordinates flattened as x0, y0, x1, y1, ...
type AnnotationRow struct {
	ImageName   string
	Coordinates []float64
}

// NumLandmarks returns the number of (x, y) pairs in the row.
func (r AnnotationRow) NumLandmarks() int {
	return len(r.Coordinates) / 2
}

// Landmarks reshapes the coordinates into a K x 2 matrix with columns (x, y).
// The returned matrix does not share memory with the row.
func (r AnnotationRow) Landmarks() *mat.Dense {
	data := make([]float64, len(r.Coordinates))
	copy(data, r.Coordinates)
	return mat.NewDense(r.NumLandmarks(), 2, data)
}

// Annotations is the in-memory annotation table. It is read once and never
// modified afterwards, so it can be shared freely between goroutines.
type Annotations struct {
	columns []string
	rows    []AnnotationRow
}

// LoadAnnotations reads and parses the CSV annotation file at path.
func LoadAnnotations(path string) (*Annotations, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations %s: %w: %w", path, ErrParse, err)
	}
	defer file.Close()

	a, err := ReadAnnotations(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotations %s: %w", path, err)
	}
	return a, nil
}

// ReadAnnotations parses an annotation table from r. The first record is the
// header; column 0 holds the image file name and the remaining columns hold an
// even, non-zero number of landmark coordinates.
func ReadAnnotations(r io.Reader) (*Annotations, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header: %w", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w: %w", ErrParse, err)
	}
	numCoords := len(header) - 1
	if numCoords <= 0 {
		return nil, fmt.Errorf("header has no landmark columns: %w", ErrParse)
	}
	if numCoords%2 != 0 {
		return nil, fmt.Errorf("header has %d coordinate columns, expected an even count: %w",
			numCoords, ErrParse)
	}

	a := &Annotations{columns: make([]string, len(header))}
	for i, col := range header {
		a.columns[i] = strings.TrimSpace(col)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w: %w", ErrParse, err)
		}
		row, err := parseAnnotationRecord(record, numCoords)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		a.rows = append(a.rows, row)
	}

	return a, nil
}

// parseAnnotationRecord converts one CSV record into an AnnotationRow.
func parseAnnotationRecord(record []string, numCoords int) (AnnotationRow, error) {
	if len(record)-1 != numCoords {
		return AnnotationRow{}, fmt.Errorf("got %d coordinates, expected %d: %w",
			len(record)-1, numCoords, ErrParse)
	}
	name := strings.TrimSpace(record[0])
	if name == "" {
		return AnnotationRow{}, fmt.Errorf("empty image name: %w", ErrParse)
	}

	row := AnnotationRow{ImageName: name, Coordinates: make([]float64, numCoords)}
	for i, field := range record[1:] {
		v, err := parseFloat64(field)
		if err != nil {
			return AnnotationRow{}, fmt.Errorf("failed to parse coordinate %d of %s: %w: %w",
				i, name, ErrParse, err)
		}
		row.Coordinates[i] = v
	}
	return row, nil
}

// Len returns the number of annotated images.
func (a *Annotations) Len() int {
	return len(a.rows)
}

// Row returns a copy of the annotation at index i.
func (a *Annotations) Row(i int) (AnnotationRow, error) {
	if err := checkIndex(i, len(a.rows)); err != nil {
		return AnnotationRow{}, err
	}
	row := a.rows[i]
	coords := make([]float64, len(row.Coordinates))
	copy(coords, row.Coordinates)
	return AnnotationRow{ImageName: row.ImageName, Coordinates: coords}, nil
}

// Columns returns the header names.
func (a *Annotations) Columns() []string {
	cols := make([]string, len(a.columns))
	copy(cols, a.columns)
	return cols
}

// NumLandmarks returns K, the number of landmarks per image.
func (a *Annotations) NumLandmarks() int {
	return (len(a.columns) - 1) / 2
}
