package security

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImagePreset bounds the output of a processed image.
type ImagePreset struct {
	Name      string `json:"name" yaml:"name"`
	MaxWidth  int    `json:"max_width" yaml:"max_width"`
	MaxHeight int    `json:"max_height" yaml:"max_height"`
	Quality   int    `json:"quality" yaml:"quality"`
}

var (
	PresetProfile   = ImagePreset{Name: "profile", MaxWidth: 800, MaxHeight: 800, Quality: 85}
	PresetStory     = ImagePreset{Name: "story", MaxWidth: 1080, MaxHeight: 1920, Quality: 85}
	PresetThumbnail = ImagePreset{Name: "thumbnail", MaxWidth: 200, MaxHeight: 200, Quality: 70}
)

// LookupPreset resolves a preset by name. An empty name selects the profile preset.
func LookupPreset(name string) (ImagePreset, bool) {
	switch name {
	case "", PresetProfile.Name:
		return PresetProfile, true
	case PresetStory.Name:
		return PresetStory, true
	case PresetThumbnail.Name:
		return PresetThumbnail, true
	default:
		return ImagePreset{}, false
	}
}

// OutputContentType is the canonical format of every processed image.
const OutputContentType = TypeJPEG

// ProcessedImage is a re-encoded image with all non-pixel data removed.
type ProcessedImage struct {
	Bytes       []byte
	Width       int
	Height      int
	Format      string
	ContentType string
}

// Size returns the encoded length in bytes.
func (p *ProcessedImage) Size() int64 {
	return int64(len(p.Bytes))
}

// ImageProcessor guards against decompression bombs and re-encodes images
// into a canonical format.
type ImageProcessor struct {
	maxWidth  int
	maxHeight int
	maxPixels int64
}

func NewImageProcessor(rules CategoryRules) *ImageProcessor {
	maxPixels := rules.MaxPixels
	if maxPixels <= 0 {
		maxPixels = int64(rules.MaxWidth) * int64(rules.MaxHeight)
	}
	return &ImageProcessor{
		maxWidth:  rules.MaxWidth,
		maxHeight: rules.MaxHeight,
		maxPixels: maxPixels,
	}
}

// CheckDimensions reads only the image header and enforces the size limits.
// Unreadable headers are a validation failure.
func (p *ImageProcessor) CheckDimensions(buf []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		// HEIC passes the type policy but has no registered decoder.
		if DetectContentType(buf) == TypeHEIC {
			return image.Config{}, reject("HEIC images cannot be processed. Please upload JPEG, PNG or WebP")
		}
		return image.Config{}, reject("Could not read image metadata")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, reject("Image has invalid dimensions")
	}
	if cfg.Width > p.maxWidth || cfg.Height > p.maxHeight {
		return image.Config{}, reject("Image dimensions too large. Maximum: %dx%d", p.maxWidth, p.maxHeight)
	}
	if int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		return image.Config{}, reject("Image pixel count exceeds maximum of %d", p.maxPixels)
	}
	return cfg, nil
}

// Process validates buf, normalizes its orientation, fits it inside the
// preset bounds without upscaling and re-encodes it.
func (p *ImageProcessor) Process(buf []byte, preset ImagePreset) (*ProcessedImage, error) {
	if _, err := p.CheckDimensions(buf); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, reject("Could not decode image")
	}

	img = applyOrientation(img, jpegOrientation(buf))
	img = fit(img, preset.MaxWidth, preset.MaxHeight)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: preset.Quality}); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &ProcessedImage{
		Bytes:       out.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		Format:      "jpeg",
		ContentType: OutputContentType,
	}, nil
}

// fit scales img down to fit within maxW x maxH, keeping the aspect ratio.
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return img
	}

	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}

	dw := max(1, int(float64(w)*scale+0.5))
	dh := max(1, int(float64(h)*scale+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
