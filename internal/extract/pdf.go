package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzReader reads PDF text layers with MuPDF.
type FitzReader struct{}

func (FitzReader) Text(ctx context.Context, data []byte) (string, int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	var b strings.Builder
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", i, err
		}
		txt, err := doc.Text(i)
		if err != nil {
			return "", i, fmt.Errorf("page %d: %w", i+1, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	return b.String(), pages, nil
}
