package security

import (
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// DefaultBitrate is assumed for audio types missing from the bitrate table.
const DefaultBitrate = 128000

// Bitrates maps declared audio MIME types to an assumed bitrate in bits per second.
var Bitrates = map[string]int{
	"audio/mpeg":  128000,
	"audio/wav":   1411200, // 44.1 kHz, 16-bit, stereo PCM
	"audio/ogg":   96000,
	"audio/mp4":   128000,
	"audio/webm":  96000,
	"audio/x-m4a": 128000,
}

const id3HeaderLength = 10

// AudioCheck is the outcome of a successful audio validation.
type AudioCheck struct {
	FileCheck
	EstimatedDuration time.Duration
}

// AudioValidator applies the file policy and a duration ceiling to audio uploads.
// Duration is estimated from size and bitrate; no frames are decoded.
type AudioValidator struct {
	files       *FileValidator
	maxDuration time.Duration
}

func NewAudioValidator(files *FileValidator) *AudioValidator {
	return &AudioValidator{
		files:       files,
		maxDuration: files.Rules().Audio.MaxDuration,
	}
}

// Validate checks c against the audio rules, then its estimated duration.
func (v *AudioValidator) Validate(c models.UploadCandidate) (*AudioCheck, error) {
	check, err := v.files.Validate(c, models.MediaCategoryAudio)
	if err != nil {
		return nil, err
	}

	duration := EstimateDuration(c.Size(), c.DeclaredMimeType)
	if v.maxDuration > 0 && duration > v.maxDuration {
		return nil, reject("Audio duration (%.1fs) exceeds maximum of %.0fs",
			duration.Seconds(), v.maxDuration.Seconds())
	}

	return &AudioCheck{FileCheck: *check, EstimatedDuration: duration}, nil
}

// BitrateFor returns the assumed bitrate for a declared MIME type.
func BitrateFor(mimeType string) int {
	if b, ok := Bitrates[normalizeMime(mimeType)]; ok {
		return b
	}
	return DefaultBitrate
}

// EstimateDuration approximates playback length as size*8/bitrate.
func EstimateDuration(size int64, mimeType string) time.Duration {
	seconds := float64(size) * 8 / float64(BitrateFor(mimeType))
	return time.Duration(seconds * float64(time.Second))
}

// StripID3 removes a leading ID3v2 tag. Buffers without one, or whose
// declared tag size runs past the end of the buffer, are returned unchanged.
func StripID3(buf []byte) []byte {
	if len(buf) <= id3HeaderLength || string(buf[:3]) != "ID3" {
		return buf
	}

	headerLength := synchsafe(buf[6:10]) + id3HeaderLength
	if headerLength >= len(buf) {
		return buf
	}
	return buf[headerLength:]
}

// synchsafe decodes a 28-bit integer stored as four 7-bit bytes.
func synchsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}

