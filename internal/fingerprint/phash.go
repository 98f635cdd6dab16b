package fingerprint

import (
	"fmt"
	"image"
	"os"

	// Decoders for the supported image formats. GIF, JPEG, and PNG come from
	// the standard library; BMP, TIFF, and WebP from golang.org/x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
)

// ImageFeatures holds what a single decode pass yields for an image file.
// PHash is empty when the image exceeded the pixel cap or decoding failed
// at the pixel level while the header remained readable.
type ImageFeatures struct {
	PHash  string
	Width  int
	Height int
}

// AnalyzeImage reads image dimensions and, when the pixel count is within
// maxPixels, computes a 64-bit perceptual hash. Oversized images keep their
// dimensions but skip hashing so a pathological file cannot exhaust memory.
func AnalyzeImage(path string, maxPixels int64, wantHash bool) (ImageFeatures, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageFeatures{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return ImageFeatures{}, fmt.Errorf("decode image header: %w", err)
	}
	features := ImageFeatures{Width: cfg.Width, Height: cfg.Height}

	if !wantHash {
		return features, nil
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return features, nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return features, fmt.Errorf("rewind image: %w", err)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return features, fmt.Errorf("decode image: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return features, fmt.Errorf("perceptual hash: %w", err)
	}
	features.PHash = fmt.Sprintf("%016x", hash.GetHash())
	return features, nil
}
