package interfaces

import (
	"context"
)

// PDFMetadata contains metadata about a PDF document
type PDFMetadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	PageCount   int    `json:"page_count"`
	FileSize    int64  `json:"file_size"`
	IsEncrypted bool   `json:"is_encrypted"`
}

// PDFExtractor extracts text content from PDF files on disk
type PDFExtractor interface {
	// ExtractText extracts all text content from the PDF at the given path,
	// concatenated across pages in order
	ExtractText(ctx context.Context, path string) (string, error)

	// GetMetadata retrieves document properties without extracting text
	GetMetadata(ctx context.Context, path string) (*PDFMetadata, error)
}
