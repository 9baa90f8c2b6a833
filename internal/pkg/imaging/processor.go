package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const jpegQuality = 85

// VariantSpec describes one derived resolution of a logical image.
type VariantSpec struct {
	Name    string
	MaxSide int
}

// Variants is the closed set of derived resolutions. The original is stored
// as-is and is not listed here.
var Variants = []VariantSpec{
	{Name: "thumb", MaxSide: 200},
	{Name: "medium", MaxSide: 600},
	{Name: "large", MaxSide: 1200},
}

// Derived is one encoded size variant ready for storage.
type Derived struct {
	Name        string
	Data        []byte
	Width       int
	Height      int
	ContentType string
}

// Dimensions decodes just enough of the image to report its pixel size.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// DeriveVariants decodes the original once and produces every variant in
// Variants, fitted with Lanczos and re-encoded as JPEG. Variants are never
// upscaled past the original.
func DeriveVariants(data []byte) ([]Derived, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	derived := make([]Derived, 0, len(Variants))
	for _, spec := range Variants {
		v := img
		if maxSide(img) > spec.MaxSide {
			v = imaging.Fit(img, spec.MaxSide, spec.MaxSide, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, v, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", spec.Name, err)
		}

		derived = append(derived, Derived{
			Name:        spec.Name,
			Data:        buf.Bytes(),
			Width:       v.Bounds().Dx(),
			Height:      v.Bounds().Dy(),
			ContentType: "image/jpeg",
		})
	}

	return derived, nil
}

func maxSide(img image.Image) int {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w > h {
		return w
	}
	return h
}
