package security

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// withOrientation inserts an APP1 EXIF segment carrying orientation right after SOI.
func withOrientation(jpg []byte, orientation uint16) []byte {
	tiff := []byte{'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08}
	ifd := make([]byte, 2+12+4)
	binary.BigEndian.PutUint16(ifd[0:], 1)
	binary.BigEndian.PutUint16(ifd[2:], exifOrientationTag)
	binary.BigEndian.PutUint16(ifd[4:], 3) // SHORT
	binary.BigEndian.PutUint32(ifd[6:], 1)
	binary.BigEndian.PutUint16(ifd[10:], orientation)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	payload = append(payload, ifd...)

	seg := []byte{0xFF, 0xE1, 0x00, 0x00}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

func TestImageProcessor_CheckDimensions(t *testing.T) {
	p := NewImageProcessor(CategoryRules{MaxWidth: 100, MaxHeight: 100})

	cfg, err := p.CheckDimensions(encodePNG(t, 100, 50))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	_, err = p.CheckDimensions(encodePNG(t, 101, 10))
	requireRejected(t, err, "Maximum: 100x100")

	_, err = p.CheckDimensions(encodePNG(t, 10, 101))
	requireRejected(t, err, "Maximum: 100x100")
}

func TestImageProcessor_PixelCountBomb(t *testing.T) {
	// Each dimension fits but the pixel budget does not.
	p := NewImageProcessor(CategoryRules{MaxWidth: 400, MaxHeight: 400, MaxPixels: 400 * 10})

	_, err := p.CheckDimensions(encodePNG(t, 400, 11))
	requireRejected(t, err, "pixel count")

	_, err = p.CheckDimensions(encodePNG(t, 400, 10))
	assert.NoError(t, err)
}

func TestImageProcessor_DefaultPixelBudget(t *testing.T) {
	p := NewImageProcessor(DefaultFileRules().Image)
	assert.Equal(t, int64(4096*4096), p.maxPixels)
}

func TestImageProcessor_UnreadableMetadata(t *testing.T) {
	p := NewImageProcessor(DefaultFileRules().Image)

	_, err := p.Process([]byte("definitely not an image"), PresetProfile)
	requireRejected(t, err, "Could not read image metadata")

	// A truncated PNG header still fails cleanly.
	_, err = p.Process(encodePNG(t, 10, 10)[:20], PresetProfile)
	requireRejected(t, err, "Could not read image metadata")
}

func TestImageProcessor_HEICRejectedClearly(t *testing.T) {
	p := NewImageProcessor(DefaultFileRules().Image)

	_, err := p.Process(ftyp("heic"), PresetProfile)
	requireRejected(t, err, "HEIC images cannot be processed. Please upload JPEG, PNG or WebP")
}

func TestImageProcessor_Process(t *testing.T) {
	p := NewImageProcessor(DefaultFileRules().Image)

	t.Run("no upscaling", func(t *testing.T) {
		out, err := p.Process(encodePNG(t, 40, 20), PresetThumbnail)
		require.NoError(t, err)
		assert.Equal(t, 40, out.Width)
		assert.Equal(t, 20, out.Height)
		assert.Equal(t, TypeJPEG, DetectContentType(out.Bytes))
		assert.Equal(t, OutputContentType, out.ContentType)
		assert.Equal(t, int64(len(out.Bytes)), out.Size())
	})

	t.Run("fits within bounds", func(t *testing.T) {
		out, err := p.Process(encodePNG(t, 400, 100), PresetThumbnail)
		require.NoError(t, err)
		assert.Equal(t, 200, out.Width)
		assert.Equal(t, 50, out.Height)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Bytes))
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("tall image bounded by height", func(t *testing.T) {
		out, err := p.Process(encodePNG(t, 100, 400), ImagePreset{MaxWidth: 200, MaxHeight: 200, Quality: 80})
		require.NoError(t, err)
		assert.Equal(t, 50, out.Width)
		assert.Equal(t, 200, out.Height)
	})
}

func TestImageProcessor_StripsMetadataAndNormalizesOrientation(t *testing.T) {
	p := NewImageProcessor(DefaultFileRules().Image)
	src := withOrientation(encodeJPEG(t, 40, 20), 6)
	require.Equal(t, 6, jpegOrientation(src))

	out, err := p.Process(src, PresetProfile)
	require.NoError(t, err)

	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 40, out.Height)
	assert.NotContains(t, string(out.Bytes), "Exif")
	assert.Equal(t, 1, jpegOrientation(out.Bytes))
}

func TestApplyOrientation(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	marker := color.RGBA{R: 255, A: 255}
	src.Set(0, 0, marker)

	tests := []struct {
		orientation int
		w, h        int
		x, y        int
	}{
		{1, 3, 2, 0, 0},
		{2, 3, 2, 2, 0},
		{3, 3, 2, 2, 1},
		{4, 3, 2, 0, 1},
		{5, 2, 3, 0, 0},
		{6, 2, 3, 1, 0},
		{7, 2, 3, 1, 2},
		{8, 2, 3, 0, 2},
	}
	for _, tt := range tests {
		out := applyOrientation(src, tt.orientation)
		b := out.Bounds()
		assert.Equal(t, tt.w, b.Dx(), "orientation %d width", tt.orientation)
		assert.Equal(t, tt.h, b.Dy(), "orientation %d height", tt.orientation)
		r, _, _, _ := out.At(tt.x, tt.y).RGBA()
		assert.Equal(t, uint32(0xFFFF), r, "orientation %d marker position", tt.orientation)
	}
}

func TestLookupPreset(t *testing.T) {
	p, ok := LookupPreset("")
	assert.True(t, ok)
	assert.Equal(t, PresetProfile, p)

	p, ok = LookupPreset("story")
	assert.True(t, ok)
	assert.Equal(t, 1920, p.MaxHeight)

	_, ok = LookupPreset("banner")
	assert.False(t, ok)
}
