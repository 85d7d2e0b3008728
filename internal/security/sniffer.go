package security

import (
	"bytes"
	"strings"
)

// MinSniffLength is the shortest buffer DetectContentType will classify.
const MinSniffLength = 12

const svgSniffWindow = 500

// Canonical content types produced by DetectContentType.
const (
	TypeJPEG       = "image/jpeg"
	TypePNG        = "image/png"
	TypeWebP       = "image/webp"
	TypeGIF        = "image/gif"
	TypeSVG        = "image/svg+xml"
	TypeHEIC       = "image/heic"
	TypeMP4        = "video/mp4"
	TypeQuickTime  = "video/quicktime"
	TypeMPEG       = "audio/mpeg"
	TypeWAV        = "audio/wav"
	TypeOGG        = "audio/ogg"
	TypeWebM       = "video/webm"
	TypePDF        = "application/pdf"
	TypeExecutable = "application/x-executable"
	TypeZIP        = "application/zip"
)

type signature struct {
	contentType string
	match       func(buf []byte) bool
}

func prefix(magic ...byte) func([]byte) bool {
	return func(buf []byte) bool { return bytes.HasPrefix(buf, magic) }
}

func riff(form string) func([]byte) bool {
	return func(buf []byte) bool {
		return bytes.HasPrefix(buf, []byte("RIFF")) && string(buf[8:12]) == form
	}
}

func svgText(buf []byte) bool {
	window := buf
	if len(window) > svgSniffWindow {
		window = window[:svgSniffWindow]
	}
	text := strings.ToLower(strings.TrimSpace(string(window)))
	return strings.Contains(text, "<svg") || strings.Contains(text, "<?xml")
}

func ftypBrand(brands ...string) func([]byte) bool {
	return func(buf []byte) bool {
		if string(buf[4:8]) != "ftyp" {
			return false
		}
		brand := string(buf[8:12])
		for _, b := range brands {
			if brand == b {
				return true
			}
		}
		return false
	}
}

func mpegFrameSync(buf []byte) bool {
	return buf[0] == 0xFF && buf[1]&0xE0 == 0xE0
}

// signatures is evaluated in order; the first match wins.
// RIFF containers are told apart by the form type at offset 8, and ftyp
// boxes by the major brand at offset 8. An ftyp box with an unknown brand
// falls through to the remaining signatures.
var signatures = []signature{
	{TypeJPEG, prefix(0xFF, 0xD8, 0xFF)},
	{TypePNG, prefix(0x89, 0x50, 0x4E, 0x47)},
	{TypeWebP, riff("WEBP")},
	{TypeGIF, prefix('G', 'I', 'F', '8')},
	{TypeSVG, svgText},
	{TypeHEIC, ftypBrand("heic", "heix", "hevc", "mif1")},
	{TypeMP4, ftypBrand("isom", "mp41", "mp42", "M4V ")},
	{TypeQuickTime, ftypBrand("qt  ")},
	{TypeMPEG, prefix('I', 'D', '3')},
	{TypeMPEG, mpegFrameSync},
	{TypeWAV, riff("WAVE")},
	{TypeOGG, prefix('O', 'g', 'g', 'S')},
	{TypeWebM, prefix(0x1A, 0x45, 0xDF, 0xA3)},
	{TypePDF, prefix('%', 'P', 'D', 'F')},
	{TypeExecutable, prefix('M', 'Z')},
	{TypeZIP, prefix('P', 'K', 0x03, 0x04)},
}

// DetectContentType classifies buf by its magic bytes.
// It returns "" when the buffer is shorter than MinSniffLength or matches
// no signature.
func DetectContentType(buf []byte) string {
	if len(buf) < MinSniffLength {
		return ""
	}

	for _, sig := range signatures {
		if sig.match(buf) {
			return sig.contentType
		}
	}

	return ""
}

// MajorType returns the part of a content type before the slash.
func MajorType(contentType string) string {
	major, _, _ := strings.Cut(strings.ToLower(contentType), "/")
	return major
}
