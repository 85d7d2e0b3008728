package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BradenHooton/sentinel/internal/models"
)

// ValidationError describes why an input was rejected by policy.
// The policy is public, so Reason is safe to return to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return models.ErrValidation
}

func reject(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FileCheck is the outcome of a successful validation.
type FileCheck struct {
	Extension     string
	DetectedType  string // "" when the sniffer could not classify the content
	EffectiveType string // detected type, or the declared type when undetected
}

// FileValidator applies FileRules to upload candidates.
type FileValidator struct {
	rules FileRules
}

// NewFileValidator creates a validator for rules.
func NewFileValidator(rules FileRules) *FileValidator {
	return &FileValidator{rules: rules}
}

// Rules returns the policy the validator enforces.
func (v *FileValidator) Rules() FileRules {
	return v.rules
}

// Validate runs the category checks in order and stops at the first failure.
func (v *FileValidator) Validate(c models.UploadCandidate, category models.MediaCategory) (*FileCheck, error) {
	rules, ok := v.rules.ForCategory(category)
	if !ok {
		return nil, reject("Unsupported upload category %q", category)
	}

	if c.Size() == 0 {
		return nil, reject("File is empty")
	}
	if rules.MaxSize > 0 && c.Size() > rules.MaxSize {
		return nil, reject("File exceeds the maximum size of %s", formatBytes(rules.MaxSize))
	}

	ext := strings.ToLower(filepath.Ext(c.Filename))
	if contains(v.rules.BlockedExtensions, ext) {
		return nil, reject("File extension %s is not allowed", ext)
	}
	if !contains(rules.AllowedExtensions, ext) {
		return nil, reject("Invalid file extension. Allowed: %s", strings.Join(rules.AllowedExtensions, ", "))
	}
	if HasDoubleExtension(c.Filename, v.rules.BlockedExtensions) {
		return nil, reject("Suspicious file name detected")
	}

	declared := normalizeMime(c.DeclaredMimeType)
	if contains(rules.BlockedMimeTypes, declared) {
		return nil, reject("File type %s is not allowed", declared)
	}
	if !contains(rules.AllowedMimeTypes, declared) {
		return nil, reject("Invalid file type. Allowed: %s", strings.Join(rules.AllowedMimeTypes, ", "))
	}

	detected := DetectContentType(c.Bytes)
	check := &FileCheck{Extension: ext, DetectedType: detected, EffectiveType: declared}

	if detected == "" {
		if rules.RequireDetection {
			return nil, reject("Could not verify file type from content")
		}
		return check, nil
	}

	if !detectedAllowed(rules, detected) {
		return nil, reject("File content does not match an allowed type")
	}

	// Only the major type is compared: image/jpeg content declared as
	// image/png passes this step.
	if MajorType(detected) != MajorType(declared) && !contains(rules.AllowedDetectedMajors, MajorType(detected)) {
		return nil, reject("File content does not match declared type")
	}

	check.EffectiveType = detected
	return check, nil
}

func detectedAllowed(rules CategoryRules, detected string) bool {
	if len(rules.AllowedDetectedMajors) > 0 {
		return contains(rules.AllowedDetectedMajors, MajorType(detected))
	}
	return contains(rules.AllowedMimeTypes, detected)
}

// HasDoubleExtension reports whether any interior extension of filename is blocked,
// e.g. "resume.php.jpg".
func HasDoubleExtension(filename string, blocked []string) bool {
	parts := strings.Split(filename, ".")
	if len(parts) <= 2 {
		return false
	}
	for _, part := range parts[1 : len(parts)-1] {
		if contains(blocked, "."+strings.ToLower(part)) {
			return true
		}
	}
	return false
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	leadingDots         = regexp.MustCompile(`^\.+`)
)

// SanitizeFilename strips traversal sequences, null bytes, reserved characters and leading dots.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "\x00", "")
	name = leadingDots.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func normalizeMime(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
