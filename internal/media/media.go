// Package media describes files submitted for conversion.
package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
)

// File is one media file ready for upload.
type File struct {
	Path     string
	Name     string
	MIMEType string
	Kind     constants.MediaKind
	Size     int64

	open func() (io.ReadCloser, error)
}

// Open stats path and infers its MIME type and kind. The content is read lazily on upload.
func Open(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat media: %w", err)
	}
	if info.IsDir() {
		return File{}, common.NewAppError("MEDIA_ERROR", path+" is a directory", common.ErrInvalidInput)
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect media type: %w", err)
	}
	name := filepath.Base(path)
	mimeType, kind := infer(name, detected)
	return File{
		Path:     path,
		Name:     name,
		MIMEType: mimeType,
		Kind:     kind,
		Size:     info.Size(),
		open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps in-memory content, e.g. a capture that was never written to disk.
func FromBytes(name string, data []byte) File {
	mimeType, kind := infer(name, mimetype.Detect(data))
	return File{
		Name:     name,
		MIMEType: mimeType,
		Kind:     kind,
		Size:     int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Reader opens the file content.
func (f File) Reader() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, common.NewAppError("MEDIA_ERROR", "media has no content", common.ErrInvalidInput)
	}
	return f.open()
}

// infer prefers a specific content-sniffed type and falls back to the extension table when
// sniffing only finds a generic type.
func infer(name string, detected *mimetype.MIME) (string, constants.MediaKind) {
	ext := constants.NormalizeExt(filepath.Ext(name))
	kind, _ := constants.KindForExt(ext)

	mimeType := ""
	if detected != nil && !generic(detected) {
		mimeType = detected.String()
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
	}
	if mimeType == "" {
		if m, ok := constants.MIMEForExt(ext); ok {
			mimeType = m
		} else if kind == constants.MediaKindSpeech {
			mimeType = constants.DefaultAudioMIME
		} else {
			mimeType = constants.DefaultBinaryMIME
		}
	}
	if kind == "" {
		switch {
		case strings.HasPrefix(mimeType, "image/"):
			kind = constants.MediaKindOCR
		case strings.HasPrefix(mimeType, "audio/"), strings.HasPrefix(mimeType, "video/"):
			kind = constants.MediaKindSpeech
		}
	}
	return mimeType, kind
}

func generic(m *mimetype.MIME) bool {
	return m.Is("application/octet-stream") || m.Is("text/plain")
}
