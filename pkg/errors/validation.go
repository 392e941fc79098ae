package errors

import (
	"strings"
	"unicode"
)

// maxIdentifierLength bounds job ids and categories; both end up in file names.
const maxIdentifierLength = 128

// ValidateJobID validates a job identifier for use as a file name component.
// It rejects ids that could be used for path traversal:
//   - No empty ids
//   - No control characters or null bytes
//   - No path separators or ".." sequences
//   - Maximum length of 128 characters
func ValidateJobID(id string) error {
	if id == "" {
		return New(ErrCodeValidation, "job id cannot be empty")
	}
	if len(id) > maxIdentifierLength {
		return New(ErrCodeValidation, "job id too long (max %d characters)", maxIdentifierLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeValidation, "job id contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(id, pattern) {
			return New(ErrCodeValidation, "job id contains invalid characters: %q", pattern)
		}
	}
	return nil
}

// ValidateCategory validates a garment category identifier.
// Categories are letters, digits, '_' and '-' only.
func ValidateCategory(category string) error {
	if category == "" {
		return New(ErrCodeValidation, "category cannot be empty")
	}
	if len(category) > maxIdentifierLength {
		return New(ErrCodeValidation, "category too long (max %d characters)", maxIdentifierLength)
	}
	for _, r := range category {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return New(ErrCodeValidation, "category contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateURL validates an overlay locator for safety.
// Remote locators must use http or https; file:// and bare paths are
// accepted for local overlays.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeValidation, "URL cannot be empty")
	}
	if i := strings.Index(rawURL, "://"); i > 0 {
		switch strings.ToLower(rawURL[:i]) {
		case "http", "https", "file":
			return nil
		default:
			return New(ErrCodeValidation, "URL must use http, https or file scheme")
		}
	}
	return nil
}
