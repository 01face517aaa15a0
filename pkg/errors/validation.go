package errors

import (
	"slices"
	"strings"
	"unicode"
)

// Output formats understood by the sinks.
var validFormats = []string{"json", "geojson", "svg"}

// Point placement slots, mirrored from the label package so that the CLI
// and service can reject bad input before building an engine.
var validSlots = []string{
	"top-right", "top-left", "bottom-right", "bottom-left",
	"top", "bottom", "left", "right", "center",
}

// Polygon fit policies.
var validFits = []string{"inside", "overlap", "boundary"}

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	if !slices.Contains(validFormats, format) {
		return New(ErrCodeInvalidFormat, "unknown output format %q (must be one of %s)", format, strings.Join(validFormats, ", "))
	}
	return nil
}

// ValidateFormats checks every format and rejects an empty list.
func ValidateFormats(formats []string) error {
	if len(formats) == 0 {
		return New(ErrCodeInvalidFormat, "at least one output format is required")
	}
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSlot checks a point placement slot.
func ValidateSlot(slot string) error {
	if !slices.Contains(validSlots, slot) {
		return New(ErrCodeInvalidConfig, "unknown point position %q (must be one of %s)", slot, strings.Join(validSlots, ", "))
	}
	return nil
}

// ValidatePolygonFit checks a polygon fit policy. Empty means the default.
func ValidatePolygonFit(fit string) error {
	if fit == "" || slices.Contains(validFits, fit) {
		return nil
	}
	return New(ErrCodeInvalidConfig, "unknown polygon fit %q (must be one of %s)", fit, strings.Join(validFits, ", "))
}

// ValidateAttribute checks a feature attribute key used for label text.
func ValidateAttribute(key string) error {
	if len(key) > 256 {
		return New(ErrCodeInvalidConfig, "attribute name too long (max 256 characters)")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "attribute name contains control characters")
		}
	}
	return nil
}

// ValidatePath validates a relative file path received over the network.
// It prevents path traversal and keeps paths a reasonable length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURI checks a connection URI for a supported scheme.
func ValidateURI(uri string, schemes ...string) error {
	if uri == "" {
		return New(ErrCodeInvalidInput, "URI cannot be empty")
	}
	for _, s := range schemes {
		if strings.HasPrefix(uri, s+"://") {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URI must use one of the schemes %s", strings.Join(schemes, ", "))
}
