package docintel

import (
	"fmt"
	"path/filepath"
	"strings"

	"docintel/internal/logger"
)

// AcceptedTypes maps a lowercase filename extension (without dot) to the MIME
// types accepted for it.
type AcceptedTypes map[string][]string

// AllDocumentTypes accepts every format the layout service can analyze.
var AllDocumentTypes = AcceptedTypes{
	"pdf":  {"application/pdf", "application/x-pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"bmp":  {"image/bmp"},
	"tiff": {"image/tiff"},
	"heif": {"image/heif"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	"pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	"html": {"text/html"},
}

// PDFOnly rejects everything except PDF uploads.
var PDFOnly = AcceptedTypes{
	"pdf": {"application/pdf", "application/x-pdf"},
}

// ValidateUpload checks an uploaded document against type, emptiness and size
// constraints before any network call. Checks run in order and short-circuit
// on the first failure. Pure function of its input; the only side effect is
// logging.
func ValidateUpload(doc UploadedDocument, accepted AcceptedTypes) error {
	log := logger.WithComponent("validation")

	if accepted == nil {
		accepted = AllDocumentTypes
	}

	if doc.Data == nil {
		return ErrEmptyInput
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(doc.Filename), "."))
	mimes, ok := accepted[ext]
	if !ok {
		return fmt.Errorf("%w: extension %q (file: %s)", ErrUnsupportedType, ext, doc.Filename)
	}

	if doc.ContentType != "" {
		declared := strings.ToLower(strings.TrimSpace(doc.ContentType))
		matched := false
		for _, mime := range mimes {
			if declared == mime {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("%w: MIME type %q for extension %q", ErrUnsupportedType, doc.ContentType, ext)
		}
	}

	if len(doc.Data) == 0 {
		return ErrEmptyFile
	}

	if len(doc.Data) > MaxUploadBytes {
		return fmt.Errorf("%w: %.1fMB", ErrFileTooLarge, float64(len(doc.Data))/(1024*1024))
	}

	log.Info().
		Str("file", doc.Filename).
		Float64("size_kb", float64(len(doc.Data))/1024).
		Msg("Upload validation successful")

	return nil
}

// ContentTypeForFilename returns the primary accepted MIME type for the
// file's extension, or application/octet-stream when unknown.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if mimes, ok := AllDocumentTypes[ext]; ok && len(mimes) > 0 {
		return mimes[0]
	}
	return "application/octet-stream"
}
