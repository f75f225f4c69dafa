package docintel

import (
	"errors"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		doc      UploadedDocument
		accepted AcceptedTypes
		wantErr  error
	}{
		{
			name:    "nil data",
			doc:     UploadedDocument{Data: nil, Filename: "report.pdf"},
			wantErr: ErrEmptyInput,
		},
		{
			name:    "empty file with valid extension",
			doc:     UploadedDocument{Data: []byte{}, Filename: "report.pdf"},
			wantErr: ErrEmptyFile,
		},
		{
			name:    "unsupported extension",
			doc:     UploadedDocument{Data: []byte("hello"), Filename: "notes.txt"},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "no extension",
			doc:     UploadedDocument{Data: []byte("hello"), Filename: "README"},
			wantErr: ErrUnsupportedType,
		},
		{
			name: "declared MIME type contradicts extension",
			doc: UploadedDocument{
				Data:        []byte("%PDF-1.7"),
				Filename:    "report.pdf",
				ContentType: "image/png",
			},
			wantErr: ErrUnsupportedType,
		},
		{
			name: "valid PDF",
			doc: UploadedDocument{
				Data:        []byte("%PDF-1.7"),
				Filename:    "report.pdf",
				ContentType: "application/pdf",
			},
		},
		{
			name: "x-pdf MIME alias accepted",
			doc: UploadedDocument{
				Data:        []byte("%PDF-1.7"),
				Filename:    "report.pdf",
				ContentType: "application/x-pdf",
			},
		},
		{
			name:    "uppercase extension accepted",
			doc:     UploadedDocument{Data: []byte("%PDF-1.7"), Filename: "REPORT.PDF"},
			wantErr: nil,
		},
		{
			name: "missing content type passes on extension alone",
			doc:  UploadedDocument{Data: []byte{0x89, 'P', 'N', 'G'}, Filename: "scan.png"},
		},
		{
			name:     "pdf-only rejects png",
			doc:      UploadedDocument{Data: []byte{0x89}, Filename: "scan.png"},
			accepted: PDFOnly,
			wantErr:  ErrUnsupportedType,
		},
		{
			name:     "pdf-only accepts pdf",
			doc:      UploadedDocument{Data: []byte("%PDF-1.7"), Filename: "report.pdf"},
			accepted: PDFOnly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.doc, tt.accepted)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateUpload() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateUpload() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadSizeLimit(t *testing.T) {
	// One allocation shared by both boundary cases.
	oversized := make([]byte, MaxUploadBytes+1)

	t.Run("exactly at the limit", func(t *testing.T) {
		doc := UploadedDocument{Data: oversized[:MaxUploadBytes], Filename: "big.pdf"}
		if err := ValidateUpload(doc, nil); err != nil {
			t.Fatalf("ValidateUpload() = %v, want nil", err)
		}
	})

	t.Run("one byte over the limit", func(t *testing.T) {
		doc := UploadedDocument{Data: oversized, Filename: "big.pdf"}
		if err := ValidateUpload(doc, nil); !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("ValidateUpload() = %v, want %v", err, ErrFileTooLarge)
		}
	})
}

func TestValidationOrderShortCircuits(t *testing.T) {
	// An empty file with an unsupported extension fails the type check, not
	// the emptiness check.
	doc := UploadedDocument{Data: []byte{}, Filename: "notes.txt"}
	err := ValidateUpload(doc, nil)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ValidateUpload() = %v, want %v", err, ErrUnsupportedType)
	}
}

func TestContentTypeForFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "application/pdf"},
		{"photo.JPG", "image/jpeg"},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"unknown.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeForFilename(tt.filename); got != tt.want {
			t.Errorf("ContentTypeForFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
