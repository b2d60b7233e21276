package constants

import "strings"

// MediaKind separates OCR (image) from speech (audio) conversions.
type MediaKind string

const (
	MediaKindOCR    MediaKind = "ocr"
	MediaKindSpeech MediaKind = "speech"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaKindOCR || k == MediaKindSpeech
}

// ImageExtensions maps image extensions accepted for OCR to their MIME type.
var ImageExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"heic": "image/heic",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// AudioExtensions maps audio extensions accepted for transcription to their MIME type.
var AudioExtensions = map[string]string{
	"m4a":  "audio/x-m4a",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
	"webm": "audio/webm",
}

// DefaultAudioMIME is used when an audio file's type cannot be determined.
const DefaultAudioMIME = "audio/mpeg"

// DefaultBinaryMIME is used when nothing else is known about a file.
const DefaultBinaryMIME = "application/octet-stream"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindForExt maps a file extension to its media kind.
func KindForExt(ext string) (MediaKind, bool) {
	ext = NormalizeExt(ext)
	if _, ok := ImageExtensions[ext]; ok {
		return MediaKindOCR, true
	}
	if _, ok := AudioExtensions[ext]; ok {
		return MediaKindSpeech, true
	}
	return "", false
}

// MIMEForExt returns the MIME type registered for a media extension.
func MIMEForExt(ext string) (string, bool) {
	ext = NormalizeExt(ext)
	if m, ok := ImageExtensions[ext]; ok {
		return m, true
	}
	if m, ok := AudioExtensions[ext]; ok {
		return m, true
	}
	return "", false
}

// AllowedMediaExt reports whether ext is an accepted image or audio extension.
func AllowedMediaExt(ext string) bool {
	_, ok := KindForExt(ext)
	return ok
}
