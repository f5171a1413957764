// Package imageutil decodes uploaded images and prepares them for the
// embedding server.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the quality of every JPEG this package writes
const JPEGQuality = 85

var (
	// ErrEmptyImage is returned when an upload carries no image data
	ErrEmptyImage = errors.New("empty image")
	// ErrImageTooLarge is returned for images whose header declares more
	// than constants.MaxImagePixels pixels
	ErrImageTooLarge = errors.New("image too large")
)

// DecodeDataURL extracts the bytes of a base64 image. Both data URLs
// ("data:image/jpeg;base64,...") and bare base64 payloads are accepted.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data URL")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("unsupported data URL encoding %q", meta)
		}
		s = payload
	}
	if s == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// Normalize decodes an image of any supported format and re-encodes it as
// JPEG, scaled down to fit within maxSize if needed.
func Normalize(data []byte, maxSize int) ([]byte, error) {
	return ResizeImage(data, maxSize)
}

// ResizeImage resizes an image to fit within maxSize (width or height) while keeping aspect ratio.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return encodeJPEG(img)
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEG(resized)
}

// decode checks the dimensions in the image header before decoding the pixels.
func decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("failed to decode image: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > constants.MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// CropJPEG cuts the face box [x1, y1, x2, y2] out of an image, grown by
// padding times the box size on every side and clamped to the image.
func CropJPEG(data []byte, bbox []float64, padding float64) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	rect, err := PadBox(bbox, padding, img.Bounds())
	if err != nil {
		return nil, err
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), img, rect.Min, draw.Src)
	return encodeJPEG(crop)
}

// PadBox converts a [x1, y1, x2, y2] box into a rectangle grown by padding
// times its width and height, clamped to bounds.
func PadBox(bbox []float64, padding float64, bounds image.Rectangle) (image.Rectangle, error) {
	if len(bbox) != 4 {
		return image.Rectangle{}, fmt.Errorf("bounding box needs 4 values, got %d", len(bbox))
	}
	x1, y1, x2, y2 := bbox[0], bbox[1], bbox[2], bbox[3]
	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}, fmt.Errorf("empty bounding box %v", bbox)
	}

	padX := (x2 - x1) * padding
	padY := (y2 - y1) * padding
	rect := image.Rect(
		int(math.Round(x1-padX)), int(math.Round(y1-padY)),
		int(math.Round(x2+padX)), int(math.Round(y2+padY)),
	).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, fmt.Errorf("bounding box %v outside image %v", bbox, bounds)
	}
	return rect, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
