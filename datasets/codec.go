package datasets

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decoder reads the image file at path into a pixel array in HWC layout.
type Decoder interface {
	Decode(path string) (*Image, error)
}

// Resizer resamples an image to height x width. The result keeps the input's
// layout and channel count.
//
// ImagingCodec resamples 8-bit intensities: every value must lie in [0, 255]
// and fractional values are rounded. Run it before any step that rescales or
// normalizes pixel values.
type Resizer interface {
	Resize(img *Image, height, width int) (*Image, error)
}

// ImagingCodec decodes and resamples images with the imaging package. JPEG,
// PNG, GIF, BMP, TIFF and WebP files are supported. Resize works on 8-bit
// intensities and fails with ErrConfig on values outside [0, 255].
type ImagingCodec struct {
	// Channels selects the decoded representation: 1 (luma), 3 (RGB, the
	// default when zero) or 4 (RGBA).
	Channels int
	// Filter names the resampling filter used by Resize (see FilterByName).
	// Empty selects linear interpolation.
	Filter string
	// AutoOrient applies the EXIF orientation tag while decoding.
	AutoOrient bool
}

func (c ImagingCodec) channels() int {
	if c.Channels == 0 {
		return 3
	}
	return c.Channels
}

// Decode implements Decoder.
func (c ImagingCodec) Decode(path string) (*Image, error) {
	channels := c.channels()
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d: %w", channels, ErrConfig)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(c.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w: %w", path, ErrImageDecode, err)
	}
	return fromNRGBA(imaging.Clone(img), channels), nil
}

// Resize implements Resizer.
func (c ImagingCodec) Resize(img *Image, height, width int) (*Image, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d: %w", height, width, ErrConfig)
	}
	if img.Channels != 1 && img.Channels != 3 && img.Channels != 4 {
		return nil, fmt.Errorf("cannot resample %d channel image: %w", img.Channels, ErrConfig)
	}
	filter, err := FilterByName(c.Filter)
	if err != nil {
		return nil, err
	}
	src := img
	if img.Layout != HWC {
		src = img.Transpose(HWC)
	}
	nrgba, err := toNRGBA(src)
	if err != nil {
		return nil, err
	}
	resized := imaging.Resize(nrgba, width, height, filter)
	out := fromNRGBA(resized, img.Channels)
	if img.Layout != HWC {
		out = out.Transpose(img.Layout)
	}
	return out, nil
}

// fromNRGBA converts an 8-bit image into an HWC pixel array.
func fromNRGBA(src *image.NRGBA, channels int) *Image {
	b := src.Bounds()
	out := NewImage(b.Dy(), b.Dx(), channels, HWC)
	for y := 0; y < out.Height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+out.Width*4]
		for x := 0; x < out.Width; x++ {
			p := row[x*4 : x*4+4]
			dst := out.Pix[(y*out.Width+x)*channels:]
			switch channels {
			case 1:
				dst[0] = float32(math.Round(0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])))
			default:
				for ch := 0; ch < channels; ch++ {
					dst[ch] = float32(p[ch])
				}
			}
		}
	}
	return out
}

// toNRGBA converts an HWC pixel array back into an 8-bit image. Values are
// rounded; anything outside [0, 255] is an error.
func toNRGBA(m *Image) (*image.NRGBA, error) {
	for i, v := range m.Pix {
		if !(v >= 0 && v <= 255) {
			return nil, fmt.Errorf("pixel %d has value %v outside the 8-bit range: %w", i, v, ErrConfig)
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			p := dst.Pix[y*dst.Stride+x*4 : y*dst.Stride+x*4+4]
			p[3] = 255
			switch m.Channels {
			case 1:
				v := toUint8(m.At(y, x, 0))
				p[0], p[1], p[2] = v, v, v
			default:
				for ch := 0; ch < m.Channels; ch++ {
					p[ch] = toUint8(m.At(y, x, ch))
				}
			}
		}
	}
	return dst, nil
}

func toUint8(v float32) uint8 {
	return uint8(math.Round(float64(v)))
}

// FilterByName maps a resampling filter name to an imaging filter.
func FilterByName(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "box":
		return imaging.Box, nil
	case "", "linear":
		return imaging.Linear, nil
	case "gaussian":
		return imaging.Gaussian, nil
	case "lanczos":
		return imaging.Lanczos, nil
	}
	return imaging.ResampleFilter{}, fmt.Errorf("unknown resampling filter %q: %w", name, ErrConfig)
}
