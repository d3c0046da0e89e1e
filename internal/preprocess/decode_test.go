package preprocess

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func uniform(img interface {
	image.Image
	Set(x, y int, c color.Color)
}, c color.Color) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func assertEverywhere(t *testing.T, p *PixelArray, want [3]uint8) {
	t.Helper()
	for y := range p {
		for x := range p[y] {
			if p[y][x] != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, p[y][x], want)
			}
		}
	}
}

func TestDecodeGrayscaleReplicatesChannels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	uniform(img, color.Gray{Y: 77})

	pixels, format, err := NewDecoder().Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "png" {
		t.Errorf("Expected format png, got %s", format)
	}
	assertEverywhere(t, pixels, [3]uint8{77, 77, 77})
}

func TestDecodeDropsAlphaWithoutCompositing(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	uniform(img, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	pixels, _, err := NewDecoder().Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	assertEverywhere(t, pixels, [3]uint8{200, 100, 50})
}

func TestDecodePalettedImage(t *testing.T) {
	palette := color.Palette{color.RGBA{10, 20, 30, 255}, color.RGBA{250, 0, 0, 255}}
	img := image.NewPaletted(image.Rect(0, 0, 16, 16), palette)
	uniform(img, palette[1])

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif encode: %v", err)
	}

	pixels, format, err := NewDecoder().Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "gif" {
		t.Errorf("Expected format gif, got %s", format)
	}
	assertEverywhere(t, pixels, [3]uint8{250, 0, 0})
}

func TestDecodeStretchesAnySize(t *testing.T) {
	sizes := []image.Point{{1, 1}, {300, 100}, {100, 300}, {256, 256}, {1024, 768}}
	for _, size := range sizes {
		img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
		uniform(img, color.RGBA{R: 12, G: 34, B: 56, A: 255})

		pixels, _, err := NewDecoder().Decode(encodePNG(t, img))
		if err != nil {
			t.Fatalf("Decode %v failed: %v", size, err)
		}
		if len(pixels) != Height || len(pixels[0]) != Width || len(pixels[0][0]) != Channels {
			t.Fatalf("Unexpected shape for %v", size)
		}
		assertEverywhere(t, pixels, [3]uint8{12, 34, 56})
	}
}

func TestDecodeKeepsRGBOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	uniform(img, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	pixels, _, err := NewDecoder().Decode(encodeJPEG(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	px := pixels[128][128]
	if px[0] < 200 || px[1] > 60 || px[2] > 60 {
		t.Errorf("Expected a red pixel in RGB order, got %v", px)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	inputs := map[string][]byte{
		"empty":          nil,
		"text":           []byte("definitely not an image"),
		"corrupted jpeg": {0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x13, 0x37},
	}

	for name, data := range inputs {
		pixels, _, err := NewDecoder().Decode(data)
		if !errors.Is(err, ErrInvalidImage) {
			t.Errorf("%s: expected ErrInvalidImage, got %v", name, err)
		}
		if pixels != nil {
			t.Errorf("%s: expected no pixels on failure", name)
		}
	}
}

func TestDecodeRejectsTruncatedJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	uniform(img, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	data := encodeJPEG(t, img)

	if _, _, err := NewDecoder().Decode(data[:len(data)/3]); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage for truncated jpeg, got %v", err)
	}
}

// withDeclaredSize rewrites the IHDR chunk of a PNG so its header claims
// width x height while the pixel data stays tiny.
func withDeclaredSize(t *testing.T, data []byte, width, height uint32) []byte {
	t.Helper()
	if len(data) < 33 || string(data[12:16]) != "IHDR" {
		t.Fatal("not a png with a leading IHDR chunk")
	}
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	data := withDeclaredSize(t, encodePNG(t, img), 100000, 100000)

	pixels, format, err := NewDecoder().Decode(data)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("Expected ErrInvalidImage for a 100000x100000 header, got %v", err)
	}
	if pixels != nil {
		t.Error("Expected no pixels for an oversized image")
	}
	if format != "png" {
		t.Errorf("Expected format png, got %q", format)
	}
}

func TestDecodeMaxPixels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	uniform(img, color.Gray{Y: 50})
	data := encodePNG(t, img)

	d := NewDecoder()
	d.MaxPixels = 32*32 - 1
	if _, _, err := d.Decode(data); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage above the limit, got %v", err)
	}

	d.MaxPixels = 32 * 32
	if _, _, err := d.Decode(data); err != nil {
		t.Errorf("Expected an image at the limit to decode, got %v", err)
	}

	d.MaxPixels = 0
	if _, _, err := d.Decode(data); err != nil {
		t.Errorf("Expected a zero limit to disable the check, got %v", err)
	}
}

func TestBatchShape(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	uniform(img, color.Gray{Y: 9})

	pixels, _, err := NewDecoder().Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	batch := pixels.Batch()
	want := []int64{1, Height, Width, Channels}
	for i := range want {
		if batch.Shape[i] != want[i] {
			t.Fatalf("Expected shape %v, got %v", want, batch.Shape)
		}
	}
	if len(batch.Data) != Height*Width*Channels {
		t.Fatalf("Expected %d values, got %d", Height*Width*Channels, len(batch.Data))
	}
	if batch.Data[0] != 9 || batch.Data[len(batch.Data)-1] != 9 {
		t.Errorf("Expected raw sample values to be kept, got %v and %v", batch.Data[0], batch.Data[len(batch.Data)-1])
	}
}

func TestBatchInstances(t *testing.T) {
	var p PixelArray
	p[1][2] = [3]uint8{7, 8, 9}

	instances := p.Batch().Instances()
	if len(instances) != 1 || len(instances[0]) != Height || len(instances[0][0]) != Width {
		t.Fatalf("Unexpected instance shape")
	}
	got := instances[0][1][2]
	if len(got) != Channels || got[0] != 7 || got[1] != 8 || got[2] != 9 {
		t.Errorf("Expected [7 8 9] at (1,2), got %v", got)
	}
}
