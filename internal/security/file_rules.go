package security

import (
	"time"

	"github.com/BradenHooton/sentinel/internal/config"
	"github.com/BradenHooton/sentinel/internal/models"
)

// CategoryRules holds the upload policy for one media category.
type CategoryRules struct {
	MaxSize           int64
	AllowedExtensions []string
	AllowedMimeTypes  []string
	BlockedMimeTypes  []string

	// RequireDetection rejects content the sniffer cannot classify.
	RequireDetection bool
	// AllowedDetectedMajors, when set, accepts any detected type with one of
	// these major types instead of requiring membership in AllowedMimeTypes.
	AllowedDetectedMajors []string

	MaxWidth    int           // image only
	MaxHeight   int           // image only
	MaxPixels   int64         // image only; 0 means MaxWidth*MaxHeight
	MaxDuration time.Duration // audio only
}

// FileRules is the complete upload policy.
type FileRules struct {
	Image CategoryRules
	Audio CategoryRules
	Video CategoryRules

	// BlockedExtensions are rejected for every category, including as an
	// interior extension of a multi-dot filename.
	BlockedExtensions []string
}

// ForCategory returns the rules for c.
func (r FileRules) ForCategory(c models.MediaCategory) (CategoryRules, bool) {
	switch c {
	case models.MediaCategoryImage:
		return r.Image, true
	case models.MediaCategoryAudio:
		return r.Audio, true
	case models.MediaCategoryVideo:
		return r.Video, true
	default:
		return CategoryRules{}, false
	}
}

// DefaultBlockedExtensions lists executable, script and markup formats.
var DefaultBlockedExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".msi", ".dll", ".scr", ".pif",
	".vbs", ".vbe", ".js", ".jse", ".wsf", ".wsh", ".ps1", ".psm1",
	".sh", ".bash", ".csh", ".ksh", ".php", ".php3", ".php4", ".php5",
	".phtml", ".asp", ".aspx", ".jsp", ".py", ".rb", ".pl", ".cgi",
	".svg", ".html", ".htm", ".xhtml", ".xml", ".xsl", ".xslt",
	".swf", ".jar", ".class", ".war", ".ear",
}

// DefaultFileRules returns the stock upload policy.
func DefaultFileRules() FileRules {
	return FileRules{
		Image: CategoryRules{
			MaxSize:           10 * 1024 * 1024,
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif"},
			AllowedMimeTypes:  []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/heif"},
			BlockedMimeTypes:  []string{"image/svg+xml", "image/gif", "image/bmp", "image/tiff"},
			RequireDetection:  true,
			MaxWidth:          4096,
			MaxHeight:         4096,
		},
		Audio: CategoryRules{
			MaxSize:               5 * 1024 * 1024,
			AllowedExtensions:     []string{".mp3", ".wav", ".ogg", ".m4a", ".webm"},
			AllowedMimeTypes:      []string{"audio/mpeg", "audio/wav", "audio/ogg", "audio/mp4", "audio/webm", "audio/x-m4a"},
			AllowedDetectedMajors: []string{"audio", "video"},
			MaxDuration:           60 * time.Second,
		},
		Video: CategoryRules{
			MaxSize:           100 * 1024 * 1024,
			AllowedExtensions: []string{".mp4", ".webm", ".mov"},
			AllowedMimeTypes:  []string{"video/mp4", "video/webm", "video/quicktime"},
		},
		BlockedExtensions: DefaultBlockedExtensions,
	}
}

// FileRulesFromConfig applies the configured limits to the stock policy.
func FileRulesFromConfig(cfg config.UploadConfig) FileRules {
	rules := DefaultFileRules()
	if cfg.MaxImageBytes > 0 {
		rules.Image.MaxSize = cfg.MaxImageBytes
	}
	if cfg.MaxImageWidth > 0 {
		rules.Image.MaxWidth = cfg.MaxImageWidth
	}
	if cfg.MaxImageHeight > 0 {
		rules.Image.MaxHeight = cfg.MaxImageHeight
	}
	if cfg.MaxAudioBytes > 0 {
		rules.Audio.MaxSize = cfg.MaxAudioBytes
	}
	if cfg.MaxAudioDuration > 0 {
		rules.Audio.MaxDuration = cfg.MaxAudioDuration
	}
	if cfg.MaxVideoBytes > 0 {
		rules.Video.MaxSize = cfg.MaxVideoBytes
	}
	return rules
}
