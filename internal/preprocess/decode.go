package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Model input geometry.
const (
	Height   = 256
	Width    = 256
	Channels = 3
)

// DefaultMaxPixels caps the declared size of an upload before it is decoded.
const DefaultMaxPixels = 89478485

var ErrInvalidImage = errors.New("invalid image")

// PixelArray holds one RGB image as rows of pixels.
type PixelArray [Height][Width][Channels]uint8

// Decoder turns uploaded bytes into a PixelArray.
type Decoder struct {
	Filter resize.InterpolationFunction
	// MaxPixels rejects images whose header declares more pixels. Zero
	// disables the check.
	MaxPixels int64
}

// NewDecoder returns a Decoder that stretches images with a bicubic filter.
func NewDecoder() *Decoder {
	return &Decoder{Filter: resize.Bicubic, MaxPixels: DefaultMaxPixels}
}

// Decode parses data with any registered codec, converts it to RGB and
// stretches it to Width x Height. The aspect ratio is not preserved.
// The returned format is the codec name reported by the image package.
func (d *Decoder) Decode(data []byte) (pixels *PixelArray, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pixels = nil
			err = fmt.Errorf("%w: decoder panic: %v", ErrInvalidImage, r)
		}
	}()

	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}
	if d.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > d.MaxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit",
			ErrInvalidImage, cfg.Width, cfg.Height, d.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if img.Bounds().Empty() {
		return nil, format, fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}

	resized := resize.Resize(Width, Height, toRGB(img), d.Filter)

	bounds := resized.Bounds()
	if bounds.Dx() != Width || bounds.Dy() != Height {
		return nil, format, fmt.Errorf("%w: resized to %dx%d, want %dx%d",
			ErrInvalidImage, bounds.Dx(), bounds.Dy(), Width, Height)
	}

	return fill(resized), format, nil
}

// toRGB drops the alpha channel without compositing. Grayscale and palette
// images come out with their colour replicated into R, G and B.
func toRGB(img image.Image) *image.RGBA {
	src := imaging.Clone(img)
	dst := image.NewRGBA(src.Rect)
	for i := 0; i+3 < len(src.Pix); i += 4 {
		dst.Pix[i] = src.Pix[i]
		dst.Pix[i+1] = src.Pix[i+1]
		dst.Pix[i+2] = src.Pix[i+2]
		dst.Pix[i+3] = 0xff
	}
	return dst
}

func fill(img image.Image) *PixelArray {
	var out PixelArray
	b := img.Bounds()

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < Height; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < Width; x++ {
				out[y][x][0] = row[x*4]
				out[y][x][1] = row[x*4+1]
				out[y][x][2] = row[x*4+2]
			}
		}
		return &out
	}

	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y][x][0] = uint8(r >> 8)
			out[y][x][1] = uint8(g >> 8)
			out[y][x][2] = uint8(bl >> 8)
		}
	}
	return &out
}
