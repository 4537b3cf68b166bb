// -----------------------------------------------------------------------
// PDF Extractor - pulls the text out of uploaded PDF documents so their
// content can be reviewed alongside the chat message text
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	workDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	workDir := filepath.Join(os.TempDir(), "claimlens-pdf")
	os.MkdirAll(workDir, 0755)

	return &Extractor{
		logger:  logger,
		workDir: workDir,
	}
}

// ExtractText extracts the text content of every page, in page order.
// Pages with no extractable text are skipped.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.workDir, "extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// pdfcpu writes one content file per page; the filename carries the
	// page number.
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", pageNum))
		}
		builder.WriteString(text)
	}

	e.logger.Debug().
		Str("path", filepath.Base(path)).
		Int("page_count", pageCount).
		Int("text_length", builder.Len()).
		Msg("Extracted PDF text")

	return builder.String(), nil
}

// GetMetadata reads document properties without extracting content.
func (e *Extractor) GetMetadata(ctx context.Context, path string) (*interfaces.PDFMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	metadata := &interfaces.PDFMetadata{
		PageCount:   pdfCtx.PageCount,
		FileSize:    info.Size(),
		IsEncrypted: pdfCtx.Encrypt != nil,
	}

	e.logger.Debug().
		Int("page_count", metadata.PageCount).
		Int64("file_size", metadata.FileSize).
		Bool("encrypted", metadata.IsEncrypted).
		Msg("Extracted PDF metadata")

	return metadata, nil
}
