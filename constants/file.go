package constants

import "strings"

// FormatKind is the extraction strategy selected for an uploaded document.
type FormatKind string

// Stable values (stored in extract_job.format and returned to callers).
const (
	FormatUnsupported  FormatKind = ""
	FormatXMLContainer FormatKind = "DOCX" // zip + XML word-processing container
	FormatLegacyBinary FormatKind = "DOC"  // pre-2007 binary word document
)

// AllowedExtensions holds the file extensions the service accepts, mapped to their format.
var AllowedExtensions = map[string]FormatKind{
	"docx": FormatXMLContainer,
	"doc":  FormatLegacyBinary,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Classify picks the format from the lower-cased filename suffix. Content is never inspected.
func Classify(fileName string) FormatKind {
	name := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(name, ".docx"):
		return FormatXMLContainer
	case strings.HasSuffix(name, ".doc"):
		return FormatLegacyBinary
	default:
		return FormatUnsupported
	}
}

// IsAllowedExt reports whether ext (with or without the dot) is a supported document extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// Ext returns the canonical lower-case extension (without the dot), or "" when unsupported.
func (f FormatKind) Ext() string {
	switch f {
	case FormatXMLContainer:
		return "docx"
	case FormatLegacyBinary:
		return "doc"
	default:
		return ""
	}
}
