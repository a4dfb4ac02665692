package extract

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// minTextLayerRunes below this a PDF is treated as scanned
const minTextLayerRunes = 32

// FallbackReader reads the text layer first and switches to a secondary
// reader (OCR) when the layer is missing or nearly empty.
type FallbackReader struct {
	Primary   PDFReader
	Secondary PDFReader
	Logger    *slog.Logger
}

func (f FallbackReader) Text(ctx context.Context, data []byte) (string, int, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	text, pages, err := f.Primary.Text(ctx, data)
	if err != nil || f.Secondary == nil || utf8.RuneCountInString(strings.TrimSpace(text)) >= minTextLayerRunes {
		return text, pages, err
	}

	logger.Info("extract.pdf.ocr_fallback", "pages", pages, "text_layer_runes", utf8.RuneCountInString(strings.TrimSpace(text)))
	ocrText, ocrPages, ocrErr := f.Secondary.Text(ctx, data)
	if ocrErr != nil {
		// keep whatever the text layer had
		logger.Warn("extract.pdf.ocr_failed", "error", ocrErr)
		return text, pages, nil
	}
	return ocrText, ocrPages, nil
}
