package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Limits enforced by image edit models.
const (
	MaxEditDimension = 1024
	MaxEditBytes     = 4 << 20
)

// MaxPixels bounds width*height of any image decoded here. The header is
// checked first, so an oversized image is rejected before pixels are allocated.
const MaxPixels = 50_000_000

// ErrTooManyPixels is returned for images whose declared size exceeds MaxPixels.
var ErrTooManyPixels = errors.New("imageprep: image dimensions exceed pixel limit")

// shrinkFactor is applied repeatedly while an encoded PNG is over MaxEditBytes.
const shrinkFactor = 0.8

// Prepared is an edit-ready image with its matching mask.
type Prepared struct {
	Image  []byte
	Mask   []byte
	Width  int
	Height int
}

// PrepareForEdit converts any decodable image into an NRGBA PNG no larger
// than MaxEditDimension on either side and MaxEditBytes in size, and builds a
// fully transparent mask of the same dimensions so the whole image is editable.
func PrepareForEdit(data []byte) (*Prepared, error) {
	return prepare(data, MaxEditDimension, MaxEditBytes)
}

func prepare(data []byte, maxDim, maxBytes int) (*Prepared, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	src, _, err := decodeBounded(data, MaxPixels)
	if err != nil {
		return nil, err
	}

	var img *image.NRGBA
	b := src.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = imaging.Fit(src, maxDim, maxDim, imaging.Lanczos)
	} else {
		img = imaging.Clone(src)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	for len(encoded) > maxBytes {
		w := int(float64(img.Bounds().Dx()) * shrinkFactor)
		h := int(float64(img.Bounds().Dy()) * shrinkFactor)
		if w < 1 || h < 1 {
			return nil, errors.New("imageprep: cannot shrink image under byte limit")
		}
		img = scale(img, w, h)
		if encoded, err = encodePNG(img); err != nil {
			return nil, err
		}
	}

	mask, err := encodePNG(image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())))
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Image:  encoded,
		Mask:   mask,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// decodeBounded decodes data after checking the header against maxPixels.
func decodeBounded(data []byte, maxPixels int) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imageprep: decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("imageprep: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imageprep: decode image: %w", err)
	}
	return src, format, nil
}

func scale(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imageprep: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToPNG re-encodes any decodable image as PNG, keeping its dimensions.
func ToPNG(data []byte) ([]byte, error) {
	src, format, err := decodeBounded(data, MaxPixels)
	if err != nil {
		return nil, err
	}
	if format == "png" {
		return data, nil
	}
	return encodePNG(src)
}
